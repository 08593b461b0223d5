package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

const playHelp = `Type your statement and press enter. Commands:
  /objection <text>               raise an objection
  /motion <text>                  file a motion
  /ruling <text>                  issue a ruling (when presiding)
  /evidence <title> | <details>   enter an exhibit
  /cite <id> <text>               argue citing an exhibit
  /transcript                     print the full transcript
  /quit                           leave the courtroom`

// prompter is the part of *liner.State the game loop uses.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func newPlayCmd() *cobra.Command {
	var (
		server   string
		facts    string
		title    string
		role     string
		caseType string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take part in a proceeding from the terminal",
		Long:  "Starts a session on a running courtroom server and reads your statements line by line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("COURTROOM_TOKEN")
			}
			cl := newClient(server, token)

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			history := historyPath()
			if f, err := os.Open(history); err == nil {
				_, _ = line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(history); err == nil {
					_, _ = line.WriteHistory(f)
					f.Close()
				}
			}()

			return play(cmd.Context(), cmd.OutOrStdout(), cl, line, playOptions{
				Title:    title,
				Facts:    facts,
				Role:     role,
				CaseType: caseType,
			})
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8000", "courtroom server URL")
	cmd.Flags().StringVarP(&facts, "facts", "f", "", "case facts (required)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "case title")
	cmd.Flags().StringVarP(&role, "role", "r", string(session.RoleDefense), "your role: defense, prosecution, judge, witness or jury")
	cmd.Flags().StringVar(&caseType, "case-type", "", "criminal, civil, family, corporate or constitutional")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default $COURTROOM_TOKEN)")
	_ = cmd.MarkFlagRequired("facts")
	return cmd
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".courtroom_history"
	}
	return filepath.Join(home, ".courtroom_history")
}

type playOptions struct {
	Title    string
	Facts    string
	Role     string
	CaseType string
}

// play runs one proceeding until the user quits or input ends.
func play(ctx context.Context, out io.Writer, cl *client, p prompter, opts playOptions) error {
	created, err := cl.create(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s opened.\n\n", created.SessionID)
	printEntries(out, created.Transcript)
	fmt.Fprintln(out)
	fmt.Fprintln(out, playHelp)

	id := created.SessionID
	for {
		input, err := p.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "Court is adjourned.")
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		p.AppendHistory(input)

		cmd, rest, _ := strings.Cut(input, " ")
		rest = strings.TrimSpace(rest)
		switch cmd {
		case "/quit", "/exit":
			fmt.Fprintln(out, "Court is adjourned.")
			return nil
		case "/help":
			fmt.Fprintln(out, playHelp)
		case "/transcript":
			sess, err := cl.get(ctx, id)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			printEntries(out, sess.Transcript)
		case "/evidence":
			title, desc, _ := strings.Cut(rest, "|")
			e, err := cl.addEvidence(ctx, id, strings.TrimSpace(title), strings.TrimSpace(desc))
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintf(out, "Exhibit %s entered: %s\n", e.ID, e.Title)
		case "/cite":
			exhibit, text, _ := strings.Cut(rest, " ")
			turnAndPrint(ctx, out, cl, id, turnBody{UserInput: text, ActionType: string(session.ActionEvidence), EvidenceIDs: []string{exhibit}})
		case "/objection", "/motion", "/ruling":
			turnAndPrint(ctx, out, cl, id, turnBody{UserInput: rest, ActionType: strings.TrimPrefix(cmd, "/")})
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Fprintf(out, "unknown command %s; type /help\n", cmd)
				continue
			}
			turnAndPrint(ctx, out, cl, id, turnBody{UserInput: input})
		}
	}
}

func turnAndPrint(ctx context.Context, out io.Writer, cl *client, id string, body turnBody) {
	res, err := cl.turn(ctx, id, body)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	printEntries(out, res.Entries)
	if !res.Relevant {
		fmt.Fprintln(out, "(off topic: "+res.Status+")")
	}
}

func printEntries(out io.Writer, entries []session.TranscriptEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%s: %s\n", e.Speaker, e.Text)
	}
}

// client is a minimal JSON client for the courtroom API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		// Turns wait on the model.
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

type createBody struct {
	CaseTitle string            `json:"case_title,omitempty"`
	CaseFacts string            `json:"case_facts"`
	UserRole  string            `json:"user_role"`
	CaseType  *session.CaseType `json:"case_type,omitempty"`
}

type createResult struct {
	SessionID  string                    `json:"session_id"`
	Transcript []session.TranscriptEntry `json:"transcript"`
	Status     string                    `json:"status"`
}

type turnBody struct {
	UserInput   string   `json:"user_input"`
	ActionType  string   `json:"action_type,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

type turnResult struct {
	Entries  []session.TranscriptEntry `json:"entries"`
	Relevant bool                      `json:"relevant"`
	Status   string                    `json:"status"`
}

func (c *client) create(ctx context.Context, opts playOptions) (*createResult, error) {
	body := createBody{CaseTitle: opts.Title, CaseFacts: opts.Facts, UserRole: opts.Role}
	if opts.CaseType != "" {
		body.CaseType = &session.CaseType{Type: opts.CaseType}
	}
	var res createResult
	if err := c.do(ctx, http.MethodPost, "/sessions", body, &res); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &res, nil
}

func (c *client) turn(ctx context.Context, id string, body turnBody) (*turnResult, error) {
	var res turnResult
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/turns", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) addEvidence(ctx context.Context, id, title, desc string) (*session.Evidence, error) {
	var res struct {
		Evidence session.Evidence `json:"evidence"`
	}
	body := map[string]string{"type": string(session.EvidenceDocument), "title": title, "description": desc}
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/evidence", body, &res); err != nil {
		return nil, err
	}
	return &res.Evidence, nil
}

func (c *client) get(ctx context.Context, id string) (*session.Session, error) {
	var sess session.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s: %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
