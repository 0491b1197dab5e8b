package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkefalas/sigmalink/internal/bridge"
	"github.com/mkefalas/sigmalink/internal/config"
	"github.com/mkefalas/sigmalink/internal/discovery"
	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/poll"
	"github.com/mkefalas/sigmalink/internal/transcript"
	"github.com/mkefalas/sigmalink/internal/ui"
	"github.com/mkefalas/sigmalink/internal/urls"
)

// passwordEnvVar supplies the panel password non-interactively.
const passwordEnvVar = "SIGMALINK_PASSWORD"

var (
	panelName    string
	hostFlag     string
	portFlag     int
	usernameFlag string
	outputFormat string
	scanTimeout  int
	serveHost    string
	servePort    int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&panelName, "panel", "", "Registered panel name (default: the only registered panel)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Panel host or IP (skips the config file)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", config.DefaultPort, "Panel HTTP port")
	rootCmd.PersistentFlags().StringVar(&usernameFlag, "username", "", "Panel username (with --host)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(armCmd)
	rootCmd.AddCommand(stayCmd)
	rootCmd.AddCommand(disarmCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(serveCmd)
}

// target is a resolved panel: where it is, who we are, and how patiently to
// talk to it.
type target struct {
	name    string
	baseURL string
	creds   panel.Credentials
	tuning  *config.Tuning
}

// resolveTarget picks the panel from --host or the config file and collects
// the password from the environment or an interactive prompt.
func resolveTarget() (*target, error) {
	t := &target{tuning: &config.Tuning{}}

	if hostFlag != "" {
		if usernameFlag == "" {
			return nil, panel.NewConfigError("--username is required with --host")
		}
		p := &config.Panel{Host: hostFlag, Port: portFlag, Username: usernameFlag}
		t.name = hostFlag
		t.baseURL = p.BaseURL()
		t.creds.Username = usernameFlag
	} else {
		registry, err := config.Load()
		if err != nil {
			return nil, err
		}
		name := panelName
		if name == "" {
			if len(registry.Panels) != 1 {
				return nil, panel.NewConfigError(
					"no panel selected: pass --panel <name> or --host (see 'sigmalink add')")
			}
			for n := range registry.Panels {
				name = n
			}
		}
		p, ok := registry.Panels[name]
		if !ok {
			return nil, panel.NewConfigError(fmt.Sprintf("panel %q is not registered", name))
		}
		t.name = name
		t.baseURL = p.BaseURL()
		t.creds.Username = p.Username
		t.tuning = registry.TuningFor(name)
	}

	password, err := resolvePassword(t.creds.Username)
	if err != nil {
		return nil, err
	}
	t.creds.Password = password
	return t, nil
}

// resolvePassword reads SIGMALINK_PASSWORD or prompts on the terminal.
// Passwords are never read from the config file.
func resolvePassword(username string) (string, error) {
	if pw := os.Getenv(passwordEnvVar); pw != "" {
		return pw, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", panel.NewConfigError(
			fmt.Sprintf("no password: set %s or run interactively", passwordEnvVar))
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimSpace(string(raw))
	if pw == "" {
		return "", panel.NewConfigError("empty password")
	}
	return pw, nil
}

func (t *target) client() *panel.Client {
	return panel.NewClient(t.baseURL, t.creds, t.tuning.ClientOptions())
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the panel's current state",
	Long: `Read the panel's current state: alarm mode, zones, battery voltage, and
mains power. Logs in, scrapes the status pages, and releases the session.`,
	Example: `  # Status of the only registered panel
  sigmalink status

  # A specific registered panel
  sigmalink status --panel home

  # Direct, without a config file
  SIGMALINK_PASSWORD=secret sigmalink status --host 192.168.1.50 --username admin

  # JSON for scripting
  sigmalink status --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	client := t.client()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	defer client.Session().Invalidate(context.Background())

	snapshot, err := client.FetchStatus(ctx)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	printSnapshot(t.name, snapshot)
	return nil
}

func printSnapshot(name string, s *transcript.Snapshot) {
	fmt.Printf("%s: %s", name, ui.StateStyle(s.State).Render(ui.StateLabel(s.State)))
	if s.ZonesBypassed {
		fmt.Print(" (zones bypassed)")
	}
	fmt.Println()
	mains := "on"
	if !s.ACPower {
		mains = "OFF"
	}
	fmt.Printf("  battery %.1f V, mains %s\n", s.BatteryVolt, mains)
	for _, z := range s.Zones {
		state := "closed"
		if z.Open {
			state = "open"
		}
		line := fmt.Sprintf("  zone %-3s %-20s %s", z.ID, z.Name, state)
		if z.Bypassed {
			line += " (bypassed)"
		}
		fmt.Println(line)
	}
}

var armCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm the panel in away mode (verified)",
	Long: `Arm the panel in away mode. The command is retried and then verified by
re-reading the panel state; an HTTP 200 alone is never trusted, because the
panel silently ignores arming when a zone is open.`,
	RunE: actionRunner(panel.ActionArmAway),
}

var stayCmd = &cobra.Command{
	Use:   "stay",
	Short: "Arm the panel in stay (perimeter) mode (verified)",
	RunE:  actionRunner(panel.ActionArmStay),
}

var disarmCmd = &cobra.Command{
	Use:   "disarm",
	Short: "Disarm the panel (verified)",
	RunE:  actionRunner(panel.ActionDisarm),
}

func actionRunner(action panel.Action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		client := t.client()
		executor := panel.NewExecutor(client, t.tuning.ActionPolicy(), t.tuning.VerifyDelay())

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		defer client.Session().Invalidate(context.Background())

		fmt.Printf("Sending %s to %s...\n", action, t.name)
		result := executor.Execute(ctx, action)
		if !result.Success {
			return fmt.Errorf("%s failed after %d attempt(s): %w", action, result.Attempts, result.Err)
		}
		fmt.Printf("%s verified: panel reports %s (%d attempt(s))\n",
			action, ui.StateLabel(result.FinalState), result.Attempts)
		return nil
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the panel live in a dashboard",
	Long: `Open a live terminal dashboard for the panel: alarm state, zones,
battery, mains power, and availability, refreshed by polling. Keys: 'a' arm
away, 's' arm stay, 'd' disarm, 'q' quit.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	client := t.client()

	coordinator, err := poll.New(client, t.tuning.PollOptions())
	if err != nil {
		return err
	}
	executor := panel.NewExecutor(client, t.tuning.ActionPolicy(), t.tuning.VerifyDelay())

	updates := coordinator.Subscribe()
	coordinator.Start(cmd.Context())
	defer coordinator.Stop()

	return ui.RunWatch(t.name, updates, executor)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local network for panels",
	Long: `Scan the local network for Sigma panels. Hosts announced over mDNS are
probed on the panel port; the ones serving the panel login page are listed.
A quiet panel that announces nothing can still be checked directly:
'sigmalink scan --host <ip>'.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if hostFlag != "" {
		fmt.Printf("Probing %s...\n", hostFlag)
		p, ok := discovery.ProbeHost(ctx, hostFlag, portFlag)
		if !ok {
			return fmt.Errorf("no panel answered at %s:%d", hostFlag, portFlag)
		}
		fmt.Printf("Found: %s\n", p)
		return nil
	}

	fmt.Printf("Scanning for panels (timeout: %ds)...\n\n", scanTimeout)
	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	panels, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(panels) == 0 {
		fmt.Println("No panels found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Panels rarely announce themselves; try 'sigmalink scan --host <ip>'")
		fmt.Println("  - Check that the panel's network module is connected")
		fmt.Printf("  - See %s\n", urls.GettingStarted)
		return nil
	}

	fmt.Printf("Found %d panel(s):\n\n", len(panels))
	for i, p := range panels {
		fmt.Printf("%d. %s\n", i+1, p)
	}
	fmt.Println("\nRegister one with 'sigmalink add <name> --host <ip> --username <user>'")
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a panel in the config file",
	Long: `Register a panel under a name so other commands can address it with
--panel. The password is never written to the config file.`,
	Example: `  sigmalink add home --host 192.168.1.50 --username admin`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if hostFlag == "" || usernameFlag == "" {
		return panel.NewConfigError("'sigmalink add' needs --host and --username")
	}

	registry, err := config.Load()
	if err != nil {
		return err
	}

	entry := &config.Panel{
		Host:     hostFlag,
		Port:     portFlag,
		Username: usernameFlag,
	}
	if discovery.Probe(cmd.Context(), entry.BaseURL()) {
		entry.LastSeen = time.Now()
	} else {
		fmt.Fprintf(os.Stderr, "warning: %s did not answer the probe; registering anyway\n", entry.BaseURL())
	}

	registry.Panels[name] = entry
	if err := registry.Save(); err != nil {
		return err
	}
	fmt.Printf("Registered %q -> %s\n", name, entry.BaseURL())
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the panel over a JSON and WebSocket API",
	Long: `Start the bridge: polls the panel continuously and exposes it to other
software over HTTP.

  GET  /api/status    current snapshot and availability
  POST /api/arm_away  verified action
  POST /api/arm_stay
  POST /api/disarm
  GET  /api/stream    WebSocket pushing every poll update

API reference: ` + urls.BridgeAPI,
	Example: `  SIGMALINK_PASSWORD=secret sigmalink serve --panel home --listen-port 8472`,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "listen-host", "127.0.0.1", "Bridge listen address")
	serveCmd.Flags().IntVar(&servePort, "listen-port", 8472, "Bridge listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	client := t.client()

	coordinator, err := poll.New(client, t.tuning.PollOptions())
	if err != nil {
		return err
	}
	executor := panel.NewExecutor(client, t.tuning.ActionPolicy(), t.tuning.VerifyDelay())
	server := bridge.New(bridge.Config{Host: serveHost, Port: servePort}, coordinator, executor)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator.Start(ctx)
	defer coordinator.Stop()

	fmt.Printf("Polling %s, serving on %s:%d (Ctrl-C to stop)\n", t.name, serveHost, servePort)
	return server.Start(ctx)
}
