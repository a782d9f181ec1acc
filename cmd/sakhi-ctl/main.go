package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"
	"golang.org/x/term"

	"sakhi/internal/ipc"
	"sakhi/internal/screen"
)

const usage = `usage: sakhi-ctl [flags] <command> [args]

commands:
  open              open the mentor screen
  key               enter the API key (read without echo)
  cancel            leave the key prompt
  send [text]       ask a question, or send the typed input
  input <text>      type into the input field
  mic               toggle the microphone
  stop              stop listening or speaking
  quick <n>         put quick question n into the input field
  ask <n>           ask quick question n
  replay <n>        speak transcript turn n again
  back              close the session and return home
  status            print the current state
  watch             follow the live event stream
`

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	addr := cli.StringP("addr", "a", "127.0.0.1:8093", "Screen address, for watch")
	timeout := cli.DurationP("timeout", "t", 5*time.Second, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	if args[0] == "watch" {
		watch(*addr)
		return
	}

	msg, err := command(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raw, err := ipc.Send(ctx, *socket, msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sakhi not running:", err)
		os.Exit(1)
	}

	var r screen.Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		fmt.Fprintln(os.Stderr, "bad reply:", err)
		os.Exit(1)
	}
	printReply(r)
	if !r.OK {
		os.Exit(1)
	}
}

func command(args []string) (ipc.ControlMessage, error) {
	msg := ipc.ControlMessage{Cmd: args[0]}
	rest := strings.TrimSpace(strings.Join(args[1:], " "))

	switch args[0] {
	case "key":
		fmt.Fprint(os.Stderr, "API key: ")
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return msg, fmt.Errorf("read key: %w", err)
		}
		msg.Cmd = "credential"
		msg.Text = strings.TrimSpace(string(key))
	case "send", "input":
		msg.Text = rest
	case "quick", "ask", "replay":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return msg, fmt.Errorf("%s needs a number", args[0])
		}
		msg.Index = n
	case "open", "cancel", "mic", "stop", "back", "status":
	default:
		return msg, fmt.Errorf("unknown command %q", args[0])
	}
	return msg, nil
}

func printReply(r screen.Reply) {
	if !r.OK {
		fmt.Println("error:", r.Error)
	}
	fmt.Println("view:", r.View)
	if r.Snapshot == nil {
		return
	}
	s := r.Snapshot
	fmt.Println("state:", s.State)
	if s.Input != "" {
		fmt.Println("input:", s.Input)
	}
	for i, t := range s.Transcript {
		fmt.Printf("%3d %-9s %s\n", i, t.Speaker, t.Text)
		for _, l := range t.Links {
			fmt.Printf("    %s <%s>\n", l.Title, l.URL)
		}
	}
}

func watch(addr string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := screen.NewClient("ws://"+addr+"/ws", time.Second)
	_ = c.Watch(ctx, nil, func(ev screen.Event) {
		switch ev.Type {
		case "frame":
		case "view":
			fmt.Println("view:", ev.View)
		case "snapshot":
			s := ev.Snapshot
			line := fmt.Sprintf("state: %s", s.State)
			if n := len(s.Transcript); n > 0 {
				last := s.Transcript[n-1]
				line += fmt.Sprintf(" | %s: %s", last.Speaker, last.Text)
			}
			fmt.Println(line)
		case "notice":
			fmt.Printf("notice (%s): %s\n", ev.Notice.Kind, ev.Notice.Message)
		case "error":
			fmt.Println("error:", ev.Error)
		}
	})
}
