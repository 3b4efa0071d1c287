// Package main provides a terminal chat client for the assistant gateway.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/electrowiki/assistant/gatewayclient"
	"github.com/electrowiki/assistant/session"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Assistant gateway address")
	token := flag.String("token", "", "Bearer token for authentication")
	timeout := flag.Duration("timeout", 60*time.Second, "Per-request timeout")
	flag.Parse()

	log.SetFlags(log.Ltime)

	client := gatewayclient.NewClient(*addr, *token, *timeout)
	sess := session.New(client)

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type a question and press Enter to send.")
	fmt.Println("Commands: /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if input == "/quit" {
			fmt.Println("Bye!")
			return
		}

		done, ok := sess.Submit(context.Background(), input)
		if !ok {
			// A call is still in flight; the session drops the submission.
			fmt.Println("(previous question still pending, try again shortly)")
			continue
		}

		fmt.Println("Waiting for response...")
		<-done

		messages := sess.Messages()
		last := messages[len(messages)-1]
		fmt.Printf("\nassistant> %s\n\n", last.Content)
	}
}
