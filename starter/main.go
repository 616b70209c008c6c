package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"go.temporal.io/sdk/client"

	"kiosk-age-verification/config"
	"kiosk-age-verification/logging"
	"kiosk-age-verification/shared"
	"kiosk-age-verification/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
		Logger:    logging.New("warn", "text"),
	})
	if err != nil {
		log.Fatalf("Unable to create Temporal client: %v", err)
	}
	defer c.Close()

	// The workflow ID is derived from the kiosk, so a kiosk never runs two
	// flows. Starting an already running flow returns the existing run.
	workflowID := shared.FlowWorkflowID(cfg.KioskID)
	reader := bufio.NewReader(os.Stdin)

	req := shared.FlowRequest{
		KioskID:  cfg.KioskID,
		Defaults: cfg.Defaults(),
	}

	fmt.Println()
	fmt.Println("🚀 Starting kiosk flow for", cfg.KioskID)

	we, err := c.ExecuteWorkflow(
		context.Background(),
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: shared.KioskFlowTaskQueue,
		},
		workflows.KioskFlowWorkflow,
		req,
	)
	if err != nil {
		log.Fatalf("Unable to start workflow: %v", err)
	}
	fmt.Printf("   WorkflowID: %s\n", we.GetID())
	fmt.Printf("   RunID:      %s\n", we.GetRunID())

	for {
		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println("  Kiosk Flow CLI")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()
		fmt.Println("  [1] Tap \"Scan ID\" on the choose screen")
		fmt.Println("  [2] Query current screen")
		fmt.Println("  [3] Exit (flow keeps running)")
		fmt.Println()
		fmt.Print("Choose: ")

		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			handleChooseIDScan(c, workflowID)

		case "2":
			handleQueryScreen(c, workflowID)

		case "3":
			fmt.Println()
			fmt.Println("👋 Exiting CLI. The kiosk flow continues running in Temporal.")
			fmt.Println("   Re-run this program to reconnect, or view at http://localhost:8233")
			return

		default:
			fmt.Println("❌ Invalid choice. Please enter 1, 2, or 3.")
		}
	}
}

func queryScreen(c client.Client, workflowID string) (shared.FlowStatusResponse, error) {
	var status shared.FlowStatusResponse
	resp, err := c.QueryWorkflow(context.Background(), workflowID, "", shared.QueryCurrentScreen)
	if err != nil {
		return status, err
	}
	err = resp.Get(&status)
	return status, err
}

func handleChooseIDScan(c client.Client, workflowID string) {
	status, err := queryScreen(c, workflowID)
	if err != nil {
		fmt.Printf("❌ Query failed: %v\n", err)
		return
	}
	if status.Screen != shared.ScreenChooseVerification {
		fmt.Printf("❌ Kiosk is on %s, not on the choose screen\n", status.Screen)
		return
	}

	err = c.SignalWorkflow(
		context.Background(),
		workflowID,
		"",
		shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: status.ScreenSeq, Method: shared.MethodIDScan},
	)
	if err != nil {
		fmt.Printf("❌ Unable to signal workflow: %v\n", err)
		return
	}
	fmt.Println("✅ Choice sent. The kiosk moves to ID capture.")
}

func handleQueryScreen(c client.Client, workflowID string) {
	status, err := queryScreen(c, workflowID)
	if err != nil {
		fmt.Printf("❌ Query failed: %v\n", err)
		return
	}
	fmt.Printf("\n📋 Screen: %s (sequence %d, %d attempts)\n", status.Screen, status.ScreenSeq, status.Attempts)
}
