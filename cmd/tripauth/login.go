package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/travelplanner/tripauth"
)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address; prompted when empty")
	force := fs.Bool("force", false, "sign in again even if a session exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := a.engine.Bootstrap(ctx); err != nil {
		return err
	}
	if a.engine.IsAuthenticated() && !*force {
		fmt.Fprintf(a.out, "Already signed in as %s\n", a.engine.Session().Email)
		return nil
	}

	flow := a.engine.NewLogin()
	defer flow.Detach()
	stop := tripauth.StartCountdown(ctx, flow, time.Second)
	defer stop()

	lines := bufio.NewScanner(a.in)
	readLine := func(prompt string) (string, bool) {
		fmt.Fprint(a.out, prompt)
		if !lines.Scan() {
			return "", false
		}
		return strings.TrimSpace(lines.Text()), true
	}

	address := *email
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch flow.Phase() {
		case tripauth.PhaseAuthenticated:
			fmt.Fprintf(a.out, "Signed in as %s\n", a.engine.Session().Email)
			return nil

		case tripauth.PhaseAwaitingEmail:
			if address == "" {
				var ok bool
				if address, ok = readLine("Email: "); !ok {
					return errors.New("input closed")
				}
			}
			err := flow.SubmitEmail(ctx, address)
			address = ""
			if err != nil {
				fmt.Fprintln(a.out, tripauth.UserMessage(err))
				continue
			}
			fmt.Fprintf(a.out, "Code sent to %s. Enter it below, or r to resend, e to change email, q to quit.\n", flow.Email())

		case tripauth.PhaseAwaitingCode:
			input, ok := readLine(fmt.Sprintf("Code (%s left): ", flow.FormatExpiresIn()))
			if !ok {
				return errors.New("input closed")
			}
			if err := handleCodeInput(ctx, a, flow, input); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintln(a.out, tripauth.UserMessage(err))
			}
		}
	}
}

var errQuit = errors.New("quit")

func handleCodeInput(ctx context.Context, a *app, flow *tripauth.LoginFlow, input string) error {
	switch strings.ToLower(input) {
	case "q":
		return errQuit
	case "e":
		flow.ChangeEmail()
		return nil
	case "r":
		if err := flow.Resend(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "A new code is on its way.")
		return nil
	}

	if !flow.PasteDigits(input) {
		// Fewer than six digits: enter them one by one so SubmitCode reports the short code.
		for i := 0; i < tripauth.CodeLength; i++ {
			flow.SetDigit(i, "")
		}
		next := 0
		for _, r := range input {
			if next < 0 {
				break
			}
			next = flow.SetDigit(next, string(r))
		}
	}
	return flow.SubmitCode(ctx)
}
