package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/usecase"
)

var (
	inspectUserID int64
	inspectRole   string
	inspectPage   int
	inspectOutput string
)

// inspectCmd reads conversations straight from the store, as the given user would see them.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect stored conversations",
}

var inspectConversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List a user's conversations, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := inspectCaller()
		if err != nil {
			return err
		}
		return withInspectService(cmd.Context(), func(ctx context.Context, svc *usecase.Service) error {
			rows, err := svc.ListConversations.Execute(ctx, usecase.ListConversationsInput{Caller: caller, Page: inspectPage})
			if err != nil {
				return err
			}
			if inspectOutput == "json" {
				return printJSON(rows)
			}

			data := make([][]string, 0, len(rows))
			for _, r := range rows {
				last := "-"
				if r.LastMessage != nil && r.LastMessage.Text != nil {
					last = truncate(*r.LastMessage.Text, 40)
				}
				data = append(data, []string{
					strconv.FormatInt(r.Conversation.ID, 10),
					strconv.FormatInt(r.CounterpartID, 10),
					string(r.Conversation.Lifecycle()),
					presence(r.Conversation),
					strconv.FormatInt(r.Unread, 10),
					r.Conversation.LastActivityAt.Format(time.RFC3339),
					last,
				})
			}
			printTable([]string{"ID", "Counterpart", "Status", "Presence", "Unread", "Last Activity", "Last Message"}, data)
			fmt.Printf("%d conversation(s), page %d\n", len(rows), inspectPage)
			return nil
		})
	},
}

var inspectMessagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Show one page of a conversation's history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := inspectCaller()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("conversation id: %w", err)
		}
		return withInspectService(cmd.Context(), func(ctx context.Context, svc *usecase.Service) error {
			msgs, err := svc.GetHistory.Execute(ctx, usecase.GetHistoryInput{Caller: caller, ConversationID: id, Page: inspectPage})
			if err != nil {
				return err
			}
			if inspectOutput == "json" {
				return printJSON(msgs)
			}

			data := make([][]string, 0, len(msgs))
			for _, m := range msgs {
				text := ""
				if m.Text != nil {
					text = truncate(*m.Text, 60)
				}
				read := "✗"
				if m.Read {
					read = "✓"
				}
				data = append(data, []string{
					strconv.FormatInt(m.ID, 10),
					strconv.FormatInt(m.SenderID, 10),
					m.CreatedAt.Format(time.RFC3339),
					read,
					text,
				})
			}
			printTable([]string{"ID", "Sender", "Sent", "Read", "Text"}, data)
			fmt.Printf("%d message(s), page %d\n", len(msgs), inspectPage)
			return nil
		})
	},
}

func init() {
	inspectCmd.PersistentFlags().Int64Var(&inspectUserID, "user", 0, "user id to inspect as")
	inspectCmd.PersistentFlags().StringVar(&inspectRole, "role", "mentor", "role of the user: mentor or mentee")
	inspectCmd.PersistentFlags().IntVar(&inspectPage, "page", 1, "page number")
	inspectCmd.PersistentFlags().StringVarP(&inspectOutput, "output", "o", "table", "output format: table or json")

	inspectCmd.AddCommand(inspectConversationsCmd, inspectMessagesCmd)
	rootCmd.AddCommand(inspectCmd)
}

func inspectCaller() (chat.Caller, error) {
	role, err := chat.ParseRole(inspectRole)
	if err != nil {
		return chat.Caller{}, err
	}
	caller := chat.Caller{UserID: inspectUserID, Role: role}
	if err := caller.Validate(); err != nil {
		return chat.Caller{}, fmt.Errorf("--user: %w", err)
	}
	return caller, nil
}

// withInspectService runs fn against the configured store. No broadcaster or notifier is wired.
func withInspectService(parent context.Context, fn func(ctx context.Context, svc *usecase.Service) error) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	in, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer in.Close()

	svc := usecase.NewService(usecase.Dependencies{
		Repo:     in.repo,
		Logger:   logger,
		PageSize: cfg.Chat.PageSize,
	})
	return fn(ctx, svc)
}

func printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		Rows(rows...)
	fmt.Println(t)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func presence(c chat.Conversation) string {
	mark := func(in bool) string {
		if in {
			return "in"
		}
		return "out"
	}
	return fmt.Sprintf("mentor %s / mentee %s", mark(c.MentorIn), mark(c.MenteeIn))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
