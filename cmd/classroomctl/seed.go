package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/app"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

var seedAccounts = []user.RegisterInput{
	{Name: "System Administrator", Email: "admin@bcacomm.edu", Password: "admin123", Role: auth.RoleAdmin},
	{Name: "Dr. Rajesh Kumar", Email: "hod@bcacomm.edu", Password: "hod123", Role: auth.RoleHOD},
	{Name: "Prof. Priya Sharma", Email: "priya.sharma@bcacomm.edu", Password: "faculty123", Role: auth.RoleFaculty,
		Subject: "Data Structures", Batch: "2023-2026", Semester: "3"},
	{Name: "Dr. Amit Patel", Email: "amit.patel@bcacomm.edu", Password: "faculty123", Role: auth.RoleFaculty,
		Subject: "Database Management", Batch: "2023-2026", Semester: "3"},
	{Name: "Rahul Sharma", Email: "rahul.sharma@student.bcacomm.edu", Password: "student123", Role: auth.RoleStudent,
		RegdNo: "BCA230001", Batch: "2023-2026", Semester: "3"},
	{Name: "Priya Gupta", Email: "priya.gupta@student.bcacomm.edu", Password: "student123", Role: auth.RoleStudent,
		RegdNo: "BCA230002", Batch: "2023-2026", Semester: "3"},
	{Name: "Arjun Mehta", Email: "arjun.mehta@student.bcacomm.edu", Password: "student123", Role: auth.RoleStudent,
		RegdNo: "BCA230003", Batch: "2023-2026", Semester: "3"},
}

var seedGroup = group.CreateInput{
	Name:        "Data Structures - Sem 3",
	Description: "Lectures, assignments and announcements for Data Structures",
	Subject:     "Data Structures",
	Batch:       "2023-2026",
	Semester:    "3",
}

const seedGroupOwner = "priya.sharma@bcacomm.edu"

// seed creates the demo data. Existing accounts and the sample group are reused.
func seed(ctx context.Context, s *app.Stack, out io.Writer) error {
	var owner auth.Actor
	var students []user.User
	for _, in := range seedAccounts {
		u, created, err := ensureAccount(ctx, s.Users, in)
		if err != nil {
			return fmt.Errorf("seed %s: %w", in.Email, err)
		}
		if created {
			fmt.Fprintf(out, "created %-8s %s\n", u.Role, u.Email)
		}
		switch {
		case u.Email == seedGroupOwner:
			owner = auth.Actor{ID: u.ID, Role: u.Role}
		case u.Role == auth.RoleStudent:
			students = append(students, u)
		}
	}

	g, created, err := ensureGroup(ctx, s.Groups, owner)
	if err != nil {
		return err
	}
	for _, st := range students {
		if _, err := s.Groups.AddMember(ctx, owner, g.ID, st.ID); err != nil {
			return fmt.Errorf("add %s to %s: %w", st.Email, g.Name, err)
		}
	}
	if created {
		fmt.Fprintf(out, "created group %q\n", g.Name)
		_, err := s.Messages.Send(ctx, owner, message.SendInput{
			GroupID: g.ID,
			Content: "Welcome to " + seedGroup.Subject + "! Assignments and polls will be posted here.",
		}, nil)
		if err != nil {
			return fmt.Errorf("welcome message: %w", err)
		}
	}
	return nil
}

func ensureAccount(ctx context.Context, users *user.Service, in user.RegisterInput) (user.User, bool, error) {
	u, err := users.GetByEmail(ctx, in.Email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, false, err
	}
	u, err = users.Provision(ctx, in, true)
	return u, err == nil, err
}

func ensureGroup(ctx context.Context, groups *group.Service, owner auth.Actor) (group.View, bool, error) {
	existing, err := groups.ListForUser(ctx, owner)
	if err != nil {
		return group.View{}, false, err
	}
	for _, g := range existing {
		if g.Name == seedGroup.Name {
			return g, false, nil
		}
	}
	g, err := groups.Create(ctx, owner, seedGroup)
	return g, err == nil, err
}
