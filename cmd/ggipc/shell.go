package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// shell reads commands until EOF, "quit" or ctx is cancelled.
type shell struct {
	rl *readline.Instance
	s  *session
}

// newReadline creates the line editor with completion for command names.
func newReadline() (*readline.Instance, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+4)
	for _, c := range commands {
		items = append(items, readline.PcItem(c.name))
	}
	items = append(items,
		readline.PcItem("subs"),
		readline.PcItem("unsubscribe"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ggipc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

func (sh *shell) run(ctx context.Context) {
	defer sh.s.closeAll()

	printShellHelp(sh.rl.Stdout())

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := sh.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(sh.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "help", "?":
			printShellHelp(sh.rl.Stdout())
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(sh.rl.Stdout(), "Exiting...")
			return
		}

		if err := sh.s.exec(ctx, input); err != nil {
			sh.s.printf("Error: %v\n", err)
		}
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %-32s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintf(w, "  %-14s %-32s %s\n", "subs", "", "List subscriptions")
	fmt.Fprintf(w, "  %-14s %-32s %s\n", "unsubscribe", "<n>", "Close a subscription")
	fmt.Fprintf(w, "  %-14s %-32s %s\n", "quit", "", "Exit")
}
