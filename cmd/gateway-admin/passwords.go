package main

import (
	"bufio"
	"errors"
	"flag"
	"io"
	"strings"

	"github.com/nextphaseit/portal-gateway/internal/adapters/demoauth"
)

func runHashPassword(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	email := fs.String("email", "", "print a complete DEMO_USERS entry for this email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword(ctx.Stdin)
	if err != nil {
		return err
	}
	hash, err := demoauth.HashPassword(password)
	if err != nil {
		return err
	}
	if *email != "" {
		return writef(ctx.Stdout, "%s:%s\n", strings.TrimSpace(*email), hash)
	}
	return writef(ctx.Stdout, "%s\n", hash)
}

// readPassword reads the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on stdin")
	}
	return line, nil
}
