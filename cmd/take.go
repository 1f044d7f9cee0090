package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/session"
)

var takeCmd = &cobra.Command{
	Use:   "take <pool-id>",
	Short: "Take an adaptive test in the terminal",
	Long: `Start (or resume) a session on the pool and answer its questions.
Answers are JSON values; anything that is not valid JSON is sent as a string.
Type "quit" to abandon the session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taker, _ := cmd.Flags().GetString("taker")
		rawCfg, _ := cmd.Flags().GetString("session-config")
		patch, err := session.ParseConfigPatch([]byte(rawCfg))
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		engine, cleanup, err := newEngine(cmd.Context(), st, metrics.New())
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())

		sess, err := engine.Start(ctx, session.StartRequest{PoolID: args[0], TakerID: taker, Config: patch})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hintStyle.Render("Session "+sess.ID))

		for {
			next, err := engine.NextQuestion(ctx, sess.ID)
			if err != nil {
				return err
			}
			if next.Kind == session.OutcomeCompleted {
				fmt.Fprintln(out, hintStyle.Render("Finished: "+string(next.Reason)))
				break
			}

			it := next.Item
			fmt.Fprintf(out, "\n%s  %s\n", titleStyle.Render(fmt.Sprintf("Q%d", sess.Answered+1)), it.Content)
			fmt.Fprint(out, hintStyle.Render(string(it.Type))+" > ")

			shown := time.Now()
			if !in.Scan() {
				return in.Err()
			}
			line := strings.TrimSpace(in.Text())
			if line == "quit" {
				if _, err := engine.Abandon(ctx, sess.ID); err != nil {
					return err
				}
				fmt.Fprintln(out, hintStyle.Render("Session abandoned."))
				break
			}

			res, err := engine.SubmitResponse(ctx, session.SubmitRequest{
				SessionID: sess.ID,
				ItemID:    it.ID,
				Answer:    asJSON(line),
				Latency:   time.Since(shown),
			})
			if err != nil {
				return err
			}
			sess = res.Session
			verdict := badStyle.Render("✗ incorrect")
			if res.Correct {
				verdict = goodStyle.Render("✓ correct")
			}
			fmt.Fprintf(out, "%s  %s\n", verdict,
				hintStyle.Render(fmt.Sprintf("ability %.2f, SE %.2f", sess.Ability, sess.StandardError)))
		}

		rep, err := engine.Report(ctx, sess.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		renderReport(out, rep)
		return nil
	},
}

func asJSON(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

func init() {
	takeCmd.Flags().String("taker", "", "Test-taker id")
	takeCmd.Flags().String("session-config", "", "Session settings as JSON")
	_ = takeCmd.MarkFlagRequired("taker")
}
