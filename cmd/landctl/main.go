// Command landctl is the command-line client for a tsl daemon. It manages the
// local owner key, signs ledger transactions and queries ownership.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"threesquare.land/tsl/internal/client"
	"threesquare.land/tsl/internal/identity"
	"threesquare.land/tsl/internal/types"
)

type globals struct {
	server  string
	keyFile string
	timeout time.Duration
}

type command struct {
	usage string
	run   func(ctx context.Context, g globals, args []string) error
}

// commands is filled in init because the handlers read their own usage line.
var commands map[string]command

func init() {
	commands = map[string]command{
		"keygen":         {"keygen", runKeygen},
		"whoami":         {"whoami", runWhoami},
		"claim":          {"claim <square>", runClaim},
		"release":        {"release <square>", runRelease},
		"swap":           {"swap <my-square> <their-square> <other-owner>", runSwap},
		"cancel":         {"cancel <offer-id>", runCancel},
		"delete-account": {"delete-account [-yes]", runDeleteAccount},
		"owner":          {"owner <square>", runOwner},
		"inventory":      {"inventory [owner]", runInventory},
		"offers":         {"offers [owner]", runOffers},
		"events":         {"events [-since N] [-limit N]", runEvents},
	}
}

var commandOrder = []string{
	"keygen", "whoami", "claim", "release", "swap", "cancel",
	"delete-account", "owner", "inventory", "offers", "events",
}

func main() {
	var g globals
	fs := flag.NewFlagSet("landctl", flag.ExitOnError)
	fs.StringVar(&g.server, "server", envOr("TSL_SERVER", "http://localhost:8080"), "daemon base URL")
	fs.StringVar(&g.keyFile, "key", envOr("TSL_KEY_FILE", "tsl_key.pem"), "owner key file")
	fs.DurationVar(&g.timeout, "timeout", 15*time.Second, "request timeout")
	fs.Usage = usage
	fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		pterm.Error.Printfln("unknown command %q", args[0])
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if err := cmd.run(ctx, g, args[1:]); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func usage() {
	pterm.Println("Usage: landctl [-server URL] [-key FILE] <command> [args]")
	pterm.Println()
	for _, name := range commandOrder {
		pterm.Printfln("  %s", commands[name].usage)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func wantArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: landctl %s", usage)
	}
	return nil
}

// signingClient loads the key file; it must already exist.
func signingClient(g globals) (*client.Client, error) {
	id, err := identity.LoadIdentity(g.keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key %s (run `landctl keygen` first): %w", g.keyFile, err)
	}
	return client.New(g.server, id), nil
}

// queryClient signs as the local key when present so queries can default
// to the caller's own identity.
func queryClient(g globals) *client.Client {
	id, err := identity.LoadIdentity(g.keyFile)
	if err != nil {
		return client.New(g.server, nil)
	}
	return client.New(g.server, id)
}

func runKeygen(ctx context.Context, g globals, args []string) error {
	if _, err := os.Stat(g.keyFile); err == nil {
		return fmt.Errorf("key file %s already exists", g.keyFile)
	}
	id, err := identity.LoadOrCreateIdentity(g.keyFile)
	if err != nil {
		return err
	}
	printIdentity("NEW KEY", g.keyFile, id.Owner())
	return nil
}

func runWhoami(ctx context.Context, g globals, args []string) error {
	id, err := identity.LoadIdentity(g.keyFile)
	if err != nil {
		return err
	}
	printIdentity("IDENTITY", g.keyFile, id.Owner())
	return nil
}

func runClaim(ctx context.Context, g globals, args []string) error {
	if err := wantArgs(args, 1, commands["claim"].usage); err != nil {
		return err
	}
	c, err := signingClient(g)
	if err != nil {
		return err
	}
	if err := c.Claim(ctx, types.Square(args[0])); err != nil {
		return err
	}
	pterm.Success.Printfln("Claimed %s", pterm.LightCyan(args[0]))
	return nil
}

func runRelease(ctx context.Context, g globals, args []string) error {
	if err := wantArgs(args, 1, commands["release"].usage); err != nil {
		return err
	}
	c, err := signingClient(g)
	if err != nil {
		return err
	}
	if err := c.Release(ctx, types.Square(args[0])); err != nil {
		return err
	}
	pterm.Success.Printfln("Released %s", pterm.LightCyan(args[0]))
	return nil
}

func runSwap(ctx context.Context, g globals, args []string) error {
	if err := wantArgs(args, 3, commands["swap"].usage); err != nil {
		return err
	}
	c, err := signingClient(g)
	if err != nil {
		return err
	}
	res, err := c.Swap(ctx, types.Square(args[0]), types.Square(args[1]), types.Owner(args[2]))
	if err != nil {
		return err
	}
	printSwapResult(res, types.Square(args[0]), types.Square(args[1]))
	return nil
}

func runCancel(ctx context.Context, g globals, args []string) error {
	if err := wantArgs(args, 1, commands["cancel"].usage); err != nil {
		return err
	}
	c, err := signingClient(g)
	if err != nil {
		return err
	}
	if err := c.CancelSwap(ctx, types.OfferID(args[0])); err != nil {
		return err
	}
	pterm.Success.Printfln("Cancelled offer %s", args[0])
	return nil
}

func runDeleteAccount(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := signingClient(g)
	if err != nil {
		return err
	}
	if !*yes {
		confirm, _ := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Release every square held by %s?", shortOwner(c.Owner()))).
			WithDefaultValue(false).
			Show()
		if !confirm {
			pterm.Info.Println("Account deletion cancelled.")
			return nil
		}
	}
	res, err := c.DeleteAccount(ctx)
	if err != nil {
		return err
	}
	printReleased(res.Released)
	return nil
}

func runOwner(ctx context.Context, g globals, args []string) error {
	if err := wantArgs(args, 1, commands["owner"].usage); err != nil {
		return err
	}
	owner, err := queryClient(g).SquareOwner(ctx, types.Square(args[0]))
	if err != nil {
		return err
	}
	if owner == types.Unowned {
		pterm.Info.Printfln("%s is unowned", pterm.LightCyan(args[0]))
		return nil
	}
	pterm.Info.Printfln("%s is owned by %s", pterm.LightCyan(args[0]), owner)
	return nil
}

func ownerArg(c *client.Client, args []string) (types.Owner, error) {
	if len(args) > 0 {
		return types.Owner(args[0]), nil
	}
	if c.Owner() == types.Unowned {
		return "", errors.New("no owner given and no local key found")
	}
	return c.Owner(), nil
}

func runInventory(ctx context.Context, g globals, args []string) error {
	c := queryClient(g)
	owner, err := ownerArg(c, args)
	if err != nil {
		return err
	}
	squares, err := c.Inventory(ctx, owner)
	if err != nil {
		return err
	}
	return printInventory(owner, squares)
}

func runOffers(ctx context.Context, g globals, args []string) error {
	c := queryClient(g)
	owner, err := ownerArg(c, args)
	if err != nil {
		return err
	}
	offers, err := c.Offers(ctx, owner)
	if err != nil {
		return err
	}
	return printOffers(owner, offers)
}

func runEvents(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	since := fs.Uint64("since", 0, "only events after this sequence number")
	limit := fs.Int("limit", 50, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	events, err := queryClient(g).Events(ctx, *since, *limit)
	if err != nil {
		return err
	}
	return printEvents(events)
}
