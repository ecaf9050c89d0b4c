package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/minute/internal/api"
	"github.com/kalambet/minute/internal/config"
	"github.com/kalambet/minute/internal/session"
	"github.com/kalambet/minute/internal/storage"
)

// remoteCreator commits finished sessions through the server API, so a
// CLI-run brainstorm lands in the same store as everything else.
type remoteCreator struct {
	client *apiClient
}

func (r *remoteCreator) CreateDecision(ctx context.Context, p session.Payload) (storage.Decision, error) {
	resp, err := r.client.post(ctx, "/decisions", decisionBody(p))
	if err != nil {
		return storage.Decision{}, err
	}
	return decodeDecision(resp)
}

func decisionBody(p session.Payload) map[string]any {
	return map[string]any{
		"question":      p.Question,
		"pros":          p.Pros,
		"cons":          p.Cons,
		"finalDecision": p.FinalDecision,
		"notes":         p.Notes,
		"timeSpent":     p.TimeSpent,
		"isCompleted":   p.IsCompleted,
	}
}

// --- decide ---

var decideCmd = &cobra.Command{
	Use:   "decide [question]",
	Short: "Run a one-minute pros and cons brainstorm",
	Long: `Run a one-minute pros and cons brainstorm.

The countdown starts as soon as the question is in. While it runs:
  p <text>   add a pro
  c <text>   add a con
  rp <n>     remove pro number n
  rc <n>     remove con number n
  done       finish early
  reset      discard the session

When the minute is up (or you finish early) you review both lists, pick
yes, no or undecided, and the record is saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runDecide(cmd.Context(), &remoteCreator{client: client}, cmd.InOrStdin(), strings.Join(args, " "))
	},
}

var (
	errSessionDone  = errors.New("session finished")
	errSessionReset = errors.New("session reset")
)

func runDecide(ctx context.Context, creator session.Creator, in io.Reader, question string) error {
	reader := bufio.NewScanner(in)

	if strings.TrimSpace(question) == "" {
		fmt.Print("Question: ")
		if !reader.Scan() {
			return fmt.Errorf("no question given")
		}
		question = reader.Text()
	}

	ctrl := session.New(creator, time.Second)
	if err := ctrl.Start(question); err != nil {
		return err
	}

	printStep("%d seconds on the clock. p <text> adds a pro, c <text> a con, done finishes early.", session.BrainstormSeconds)

	for ctrl.Stage() == session.StageTiming {
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		err := applySessionLine(ctrl, line)
		if errors.Is(err, errSessionReset) {
			printWarning("Session discarded, nothing saved.")
			return nil
		}
		if errors.Is(err, errSessionDone) || errors.Is(err, session.ErrWrongStage) {
			// Countdown expired mid-entry or the user finished early.
			break
		}
		if err != nil {
			printError("%v", err)
		}
	}
	if ctrl.Stage() == session.StageTiming {
		// Expiry can race the stage check; losing that race is fine.
		if err := ctrl.FinishEarly(); err != nil && !errors.Is(err, session.ErrWrongStage) {
			return err
		}
	}

	return reviewAndSave(ctx, ctrl, reader)
}

func applySessionLine(ctrl *session.Controller, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "p", "pro", "+":
		return ctrl.AddPro(rest)
	case "c", "con", "-":
		return ctrl.AddCon(rest)
	case "rp":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("rp needs a pro number")
		}
		return ctrl.RemovePro(n - 1)
	case "rc":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("rc needs a con number")
		}
		return ctrl.RemoveCon(n - 1)
	case "done", "d":
		if err := ctrl.FinishEarly(); err != nil {
			return err
		}
		return errSessionDone
	case "reset":
		ctrl.Reset()
		return errSessionReset
	default:
		return fmt.Errorf("unknown input %q (p <text>, c <text>, rp <n>, rc <n>, done, reset)", verb)
	}
}

func reviewAndSave(ctx context.Context, ctrl *session.Controller, reader *bufio.Scanner) error {
	st := ctrl.State()

	fmt.Println()
	fmt.Println(colorize(colorBold, st.Question))
	if st.TimeSpent == 0 {
		printStep("Time is up.")
	} else {
		printStep("Finished early with %d seconds left.", st.Remaining)
	}
	printItemList("Pros", st.Pros)
	printItemList("Cons", st.Cons)

	for {
		fmt.Print("Decision (yes/no/undecided): ")
		if !reader.Scan() {
			return fmt.Errorf("no decision given")
		}
		decision := strings.ToLower(strings.TrimSpace(reader.Text()))

		fmt.Print("Notes (optional): ")
		notes := ""
		if reader.Scan() {
			notes = strings.TrimSpace(reader.Text())
		}

		d, err := ctrl.Save(ctx, decision, notes)
		switch {
		case err == nil:
			printSuccess("Saved decision %s", shortID(d.ID))
			return nil
		case errors.Is(err, session.ErrNoFinalDecision), errors.Is(err, session.ErrBadFinalDecision):
			printError("%v", err)
		default:
			return err
		}
	}
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List decision records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/decisions")
		if err != nil {
			return err
		}
		decisions, err := decodeDecisions(resp)
		if err != nil {
			return err
		}

		if len(decisions) == 0 {
			fmt.Println("No decisions yet.")
			return nil
		}
		for _, d := range decisions {
			fmt.Println(formatDecisionLine(d))
		}
		return nil
	},
}

func formatDecisionLine(d storage.Decision) string {
	mark := " "
	if d.IsCompleted {
		mark = "✓"
	}
	return fmt.Sprintf("%s %s %s  %-9s  %s",
		colorize(colorCyan, shortID(d.ID)),
		mark,
		d.CreatedAt.Format("2006-01-02"),
		d.FinalDecision,
		truncate(d.Question, 60),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single decision record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/decisions/"+args[0])
		if err != nil {
			return err
		}
		d, err := decodeDecision(resp)
		if err != nil {
			return err
		}

		printDecision(d)
		return nil
	},
}

func printDecision(d storage.Decision) {
	fmt.Println(colorize(colorBold, d.Question))
	printStatus("ID", "%s", d.ID)
	printStatus("Created", "%s", d.CreatedAt.Format(time.RFC1123))
	if d.IsCompleted {
		printStatus("Status", "completed")
		if d.CompletedAt != nil {
			printStatus("Completed", "%s", d.CompletedAt.Format(time.RFC1123))
		}
	} else {
		printStatus("Status", "open")
	}
	printStatus("Decision", "%s", d.FinalDecision)
	printStatus("Time spent", "%ds", d.TimeSpent)
	printItemList("Pros", d.Pros)
	printItemList("Cons", d.Cons)
	if d.Notes != "" {
		printStatus("Notes", "%s", d.Notes)
	}
}

func printItemList(label string, items []storage.ListItem) {
	if len(items) == 0 {
		printStatus(label, "none")
		return
	}
	fmt.Printf("  %s\n", colorize(colorBold, label+":"))
	for i, item := range items {
		fmt.Printf("    %d. %s\n", i+1, item.Text)
	}
}

// --- amend ---

var amendCmd = &cobra.Command{
	Use:   "amend <id>",
	Short: "Update fields of a decision record",
	Long: `Update fields of a decision record.

Only the flags you pass are sent; everything else keeps its value.

Examples:
  minute amend 4f8a1c22-... --decision yes --notes "went with the upgrade"
  minute amend 4f8a1c22-... --completed=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := amendBody(cmd)
		if len(body) == 0 {
			return fmt.Errorf("nothing to change: pass at least one of --question, --decision, --notes, --time-spent, --completed")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/decisions/"+args[0], body)
		if err != nil {
			return err
		}
		d, err := decodeDecision(resp)
		if err != nil {
			return err
		}

		printSuccess("Updated decision %s", shortID(d.ID))
		return nil
	},
}

// amendBody builds a partial update from the flags that were actually
// set, so an empty --notes clears notes while an omitted one keeps them.
func amendBody(cmd *cobra.Command) map[string]any {
	body := map[string]any{}
	if cmd.Flags().Changed("question") {
		v, _ := cmd.Flags().GetString("question")
		body["question"] = v
	}
	if cmd.Flags().Changed("decision") {
		v, _ := cmd.Flags().GetString("decision")
		body["finalDecision"] = v
	}
	if cmd.Flags().Changed("notes") {
		v, _ := cmd.Flags().GetString("notes")
		body["notes"] = v
	}
	if cmd.Flags().Changed("time-spent") {
		v, _ := cmd.Flags().GetInt("time-spent")
		body["timeSpent"] = v
	}
	if cmd.Flags().Changed("completed") {
		v, _ := cmd.Flags().GetBool("completed")
		body["isCompleted"] = v
	}
	return body
}

func init() {
	amendCmd.Flags().String("question", "", "new question text")
	amendCmd.Flags().String("decision", "", "final decision: yes, no or undecided")
	amendCmd.Flags().String("notes", "", "notes text")
	amendCmd.Flags().Int("time-spent", 0, "seconds spent deciding (0-60)")
	amendCmd.Flags().Bool("completed", false, "mark the decision completed or reopen it")
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a decision record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/decisions/"+args[0])
		if err != nil {
			return err
		}
		env, err := decodeEnvelope(resp)
		if err != nil {
			return err
		}

		printSuccess("%s", env.Message)
		return nil
	},
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for direct API access",
	Long: `Print a bearer token for direct API access.

The token is minted for the configured owner and signed with the shared
auth secret, suitable for curl or other HTTP clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		secret, err := config.AuthSecret()
		if err != nil {
			return err
		}
		token, err := api.IssueToken(secret, cfg.Auth.Owner, cfg.TokenTTL())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
