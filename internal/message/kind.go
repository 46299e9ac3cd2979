package message

import (
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/filetype"
)

// Kind is the closed set of message variants. Each variant has exactly one
// field that drives its rendering.
type Kind string

const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindVideo      Kind = "video"
	KindAudio      Kind = "audio"
	KindFile       Kind = "file"
	KindYouTube    Kind = "youtube"
	KindAssignment Kind = "assignment"
	KindPoll       Kind = "poll"
)

// ParseKind accepts the variants a client may send directly. Assignment and
// poll messages are only created alongside their entity.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindText, KindImage, KindVideo, KindAudio, KindFile, KindYouTube:
		return k, nil
	}
	return "", ErrInvalidType
}

// KindForFile maps an uploaded file name to its media variant.
func KindForFile(name string) Kind {
	switch filetype.Classify(name) {
	case filetype.Image:
		return KindImage
	case filetype.Video:
		return KindVideo
	case filetype.Audio:
		return KindAudio
	default:
		return KindFile
	}
}

// Validate checks that m carries the field its kind requires.
func Validate(m Message) error {
	switch m.Type {
	case KindText:
		if m.Content == "" {
			return apperr.Validation("Message content is required")
		}
	case KindImage, KindVideo, KindAudio, KindFile:
		if m.File == nil {
			return apperr.Validationf("A file is required for %s messages", m.Type)
		}
	case KindYouTube:
		if m.YoutubeURL == "" {
			return apperr.Validation("A YouTube link is required for youtube messages")
		}
	case KindAssignment:
		if m.AssignmentID == "" {
			return apperr.Validation("Assignment reference is required")
		}
	case KindPoll:
		if m.PollID == "" {
			return apperr.Validation("Poll reference is required")
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// Preview renders a one-line description of m for lists and notifications.
func Preview(m Message) string {
	switch m.Type {
	case KindText:
		return m.Content
	case KindImage:
		return "Photo: " + fileName(m)
	case KindVideo:
		return "Video: " + fileName(m)
	case KindAudio:
		return "Audio: " + fileName(m)
	case KindFile:
		return "File: " + fileName(m)
	case KindYouTube:
		return "YouTube: " + m.YoutubeURL
	case KindAssignment, KindPoll:
		return m.Content
	}
	return ""
}

func fileName(m Message) string {
	if m.File == nil {
		return m.Content
	}
	return m.File.FileName
}
