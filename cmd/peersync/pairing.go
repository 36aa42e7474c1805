package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joe/peersync/internal/config"
	"github.com/joe/peersync/internal/transport/rtc"
)

// ErrNoCode is returned when input ends before a pairing code was entered.
var ErrNoCode = errors.New("no pairing code entered")

// pair runs the manual code exchange for role, printing our code to out and
// reading the other device's code from in.
func pair(ctx context.Context, signaler *rtc.Signaler, role config.Role, in io.Reader, out io.Writer) (*rtc.Connection, error) {
	reader := bufio.NewReader(in)

	if role == config.RoleAnswer {
		offer, err := readCode(reader, out, "Paste the offer code from the other device:")
		if err != nil {
			return nil, err
		}

		conn, answer, err := signaler.Answer(ctx, offer)
		if err != nil {
			return nil, err
		}

		printCode(out, "Send this answer code to the other device:", answer)

		return conn, nil
	}

	conn, offer, err := signaler.Offer(ctx)
	if err != nil {
		return nil, err
	}

	printCode(out, "Send this offer code to the other device:", offer)

	answer, err := readCode(reader, out, "Paste the answer code:")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Accept(answer); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func printCode(out io.Writer, prompt, code string) {
	fmt.Fprintf(out, "\n%s\n\n%s\n\n", prompt, code)
}

// readCode reads the first non-blank line after prompting.
func readCode(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprintf(out, "%s\n> ", prompt)

	for {
		line, err := reader.ReadString('\n')
		if code := strings.TrimSpace(line); code != "" {
			return code, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrNoCode
			}

			return "", fmt.Errorf("failed to read pairing code: %w", err)
		}
	}
}
