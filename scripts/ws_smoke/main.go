package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/vovakirdan/lobby-server/internal/client"
	"github.com/vovakirdan/lobby-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8999/ws", "WebSocket address")
	userFile := flag.String("user-file", "lobby-user.yaml", "where the smoke identity is kept")
	name := flag.String("name", "tester", "display name to send when the server asks for one")
	code := flag.String("code", "", "session code to join; empty creates a new session")
	reconnect := flag.Bool("reconnect", true, "drop and rejoin once to exercise rejoin_session")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.Dial(ctx, *addr, client.Options{
		UserFile:  *userFile,
		OnSession: printSession,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	u := c.User()
	fmt.Printf("User: id=%s name=%q\n", u.UserID, u.DisplayName)

	var sess proto.Session
	if *code == "" {
		sess, err = c.CreateSession(ctx)
	} else {
		sess, err = c.JoinSession(ctx, *code)
	}
	if errors.Is(err, client.ErrNameRequired) {
		fmt.Printf("Server asked for a name, sending %q\n", *name)
		replayed, nameErr := c.SetDisplayName(ctx, *name)
		if nameErr != nil {
			return fmt.Errorf("set display name: %w", nameErr)
		}
		if replayed == nil {
			return errors.New("name accepted but nothing was replayed")
		}
		sess, err = *replayed, nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("In session %s (version %d)\n", sess.Code, sess.Version)

	if *reconnect {
		if err := c.Reconnect(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
		fmt.Println("Reconnected and rejoined")
	}

	exists, err := c.CheckSessionExists(ctx, sess.Code)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s exists: %v\n", sess.Code, exists)
	return nil
}

func printSession(s proto.Session) {
	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, m.DisplayName)
	}
	fmt.Printf("session_updated: code=%s version=%d members=[%s]\n", s.Code, s.Version, strings.Join(names, ", "))
}
