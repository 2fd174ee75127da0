// Package main is a small command-line front end to the Mailpit client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	mailpit "github.com/shineum/mailpit-go"
	"github.com/shineum/mailpit-go/message"
	"github.com/shineum/mailpit-go/specification"
)

const usage = `usage: mailpit [-config file] <command> [args]

commands:
  count                     print the number of captured messages
  latest [n]                list the n most recent messages (default 10)
  show <id>                 print one message
  find -subject s -to addr  list messages matching every given filter
  delete <id>               delete one message
  purge                     delete every message
  release <id> <address>    deliver a message through Mailpit's SMTP relay
  forward <id> <address>... forward a message through the configured relay
`

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	client, err := newClient(ctx, *configPath)
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, client, os.Stdout, flag.Args()); err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// newClient loads configuration from the specified path (YAML + env
// override) or from environment variables only if no path is given.
func newClient(ctx context.Context, path string) (*mailpit.Client, error) {
	if path != "" {
		return mailpit.NewFromFile(ctx, path)
	}
	return mailpit.NewFromEnv(ctx)
}

func run(ctx context.Context, client *mailpit.Client, out io.Writer, args []string) error {
	cmd, args := args[0], args[1:]

	switch cmd {
	case "count":
		n, err := client.GetNumberOfMessages(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)

	case "latest":
		n := 10
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			n = v
		}
		msgs, err := client.FindLatestMessages(ctx, n)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			printSummary(out, msg)
		}

	case "show":
		if len(args) != 1 {
			return fmt.Errorf("show takes exactly one message ID")
		}
		msg, err := client.GetMessageByID(ctx, args[0])
		if err != nil {
			return err
		}
		printMessage(out, msg)

	case "find":
		spec, err := parseFilters(args)
		if err != nil {
			return err
		}
		msgs, err := client.FindMessagesSatisfying(ctx, spec)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			printSummary(out, msg)
		}

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete takes exactly one message ID")
		}
		return client.DeleteMessage(ctx, args[0])

	case "purge":
		return client.PurgeMessages(ctx)

	case "release":
		if len(args) != 2 {
			return fmt.Errorf("release takes a message ID and an address")
		}
		return client.ReleaseMessage(ctx, args[0], args[1])

	case "forward":
		if len(args) < 2 {
			return fmt.Errorf("forward takes a message ID and at least one address")
		}
		return client.Forward(ctx, args[0], args[1:]...)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// parseFilters turns find's flags into a conjunction of specifications.
func parseFilters(args []string) (specification.Specification, error) {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "", "exact subject")
	from := fs.String("from", "", "sender address")
	to := fs.String("to", "", "recipient address")
	body := fs.String("body", "", "text contained in the body")
	attachment := fs.String("attachment", "", "attachment filename")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var specs []specification.Specification
	if *subject != "" {
		specs = append(specs, specification.Subject(*subject))
	}
	if *from != "" {
		specs = append(specs, specification.Sender(message.NewContact(*from)))
	}
	if *to != "" {
		specs = append(specs, specification.Recipient(message.NewContact(*to)))
	}
	if *body != "" {
		specs = append(specs, specification.BodyText(*body))
	}
	if *attachment != "" {
		specs = append(specs, specification.Attachment(*attachment))
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("find needs at least one filter")
	}
	return specification.All(specs[0], specs[1:]...), nil
}

func printSummary(out io.Writer, msg *message.Message) {
	fmt.Fprintf(out, "%s\t%s\t%s\n", msg.ID, msg.Sender.Address, msg.Subject)
}

func printMessage(out io.Writer, msg *message.Message) {
	fmt.Fprintf(out, "ID: %s\n", msg.ID)
	fmt.Fprintf(out, "From: %s\n", msg.Sender)
	fmt.Fprintf(out, "To: %s\n", msg.Recipients)
	if msg.CC.Len() > 0 {
		fmt.Fprintf(out, "Cc: %s\n", msg.CC)
	}
	fmt.Fprintf(out, "Subject: %s\n\n", msg.Subject)
	fmt.Fprintln(out, msg.PlainTextBody())
	for _, att := range msg.Attachments {
		fmt.Fprintf(out, "Attachment: %s (%s, %d bytes)\n", att.Filename, att.MimeType, len(att.Content))
	}
}
