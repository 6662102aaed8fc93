package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	internal_http "github.com/apexcrm/leadflow/internal/http"
	"github.com/apexcrm/leadflow/internal/log"
	internal_queue "github.com/apexcrm/leadflow/internal/queue"
	internal_storage "github.com/apexcrm/leadflow/internal/storage"
	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/queue"
	"github.com/apexcrm/leadflow/pkg/service"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow engine (worker, scheduler and admin API)",
		Run: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.GetLogger().Debugf("No .env file loaded: %v", err)
			}
			dbConnStr := mustDBFlag(cmd)
			port, _ := cmd.Flags().GetString("port")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			serve(dbConnStr, port, concurrency)
		},
	}
	serveCmd.Flags().String("port", "8080", "Admin API port")
	serveCmd.Flags().Int("concurrency", 1, "Queue worker concurrency")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			workflows, err := store.ListWorkflows()
			if err != nil {
				log.GetLogger().Errorf("Failed to list workflows: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list workflows: %v\n", err)
				os.Exit(1)
			}
			if len(workflows) == 0 {
				fmt.Fprintf(os.Stdout, "No workflows found.\n")
				return
			}
			for _, wf := range workflows {
				fmt.Fprintf(os.Stdout, "- ID: %s, Name: %s, Trigger: %s, Active: %t, Actions: %d\n",
					wf.ID, wf.Name, wf.TriggerType, wf.IsActive, len(wf.Actions))
			}
		},
	}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			trigger, _ := cmd.Flags().GetString("trigger")
			description, _ := cmd.Flags().GetString("description")
			actions, _ := cmd.Flags().GetString("actions")
			if !models.ValidTrigger(models.TriggerType(trigger)) {
				fmt.Fprintf(os.Stderr, "Error: invalid trigger %q\n", trigger)
				os.Exit(1)
			}
			wf := models.Workflow{
				ID:          uuid.NewString(),
				Name:        args[0],
				Description: description,
				TriggerType: models.TriggerType(trigger),
				RawActions:  json.RawMessage(actions),
				IsActive:    true,
				Source:      "cli",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}
			if err := store.SaveWorkflow(wf); err != nil {
				log.GetLogger().Errorf("Failed to create workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to create workflow: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Created workflow '%s' with ID %s\n", wf.Name, wf.ID)
		},
	}
	createCmd.Flags().String("trigger", string(models.LeadCreatedTrigger), "Trigger type")
	createCmd.Flags().String("description", "", "Workflow description")
	createCmd.Flags().String("actions", "[]", "Actions as a JSON array")

	triggerCmd := &cobra.Command{
		Use:   "trigger [type]",
		Short: "Fire a domain event into the engine",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			q, err := internal_queue.NewPostgresQueue(dbConnStr)
			if err != nil {
				log.GetLogger().Errorf("Failed to initialize queue: %v", err)
				os.Exit(1)
			}
			defer q.Close()
			entityID, _ := cmd.Flags().GetString("entity-id")
			entityName, _ := cmd.Flags().GetString("entity-name")
			email, _ := cmd.Flags().GetString("entity-email")
			if !models.ValidTrigger(models.TriggerType(args[0])) {
				fmt.Fprintf(os.Stderr, "Error: invalid trigger %q\n", args[0])
				os.Exit(1)
			}
			dispatcher := service.NewDispatcher(q, log.GetLogger())
			dispatcher.Trigger(context.Background(), models.TriggerType(args[0]), models.TriggerEntity{
				ID:    entityID,
				Name:  entityName,
				Email: email,
			})
			fmt.Fprintf(os.Stdout, "Triggered '%s' for entity %s\n", args[0], entityID)
		},
	}
	triggerCmd.Flags().String("entity-id", "", "Triggering entity ID")
	triggerCmd.Flags().String("entity-name", "", "Triggering entity name")
	triggerCmd.Flags().String("entity-email", "", "Triggering entity email")

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List workflow execution logs",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			status, _ := cmd.Flags().GetString("status")
			workflowID, _ := cmd.Flags().GetString("workflow")
			logs, err := store.ListExecutionLogs(storage.LogFilter{
				Status:     models.ExecutionStatus(status),
				WorkflowID: workflowID,
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to list execution logs: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list execution logs: %v\n", err)
				os.Exit(1)
			}
			if len(logs) == 0 {
				fmt.Fprintf(os.Stdout, "No execution logs found.\n")
				return
			}
			for _, l := range logs {
				fmt.Fprintf(os.Stdout, "- %s [%s] %s entity=%s action=%s %dms\n",
					l.CreatedAt.Format(time.RFC3339), l.Status, l.WorkflowName, l.EntityID, l.ActionExecuted, l.ExecutionTimeMS)
			}
		},
	}
	logsCmd.Flags().String("status", "", "Filter by status (Success|Failed)")
	logsCmd.Flags().String("workflow", "", "Filter by workflow ID")

	rootCmd.AddCommand(serveCmd, listCmd, createCmd, triggerCmd, logsCmd)
}

// serve wires the full engine: store, durable queue, worker handlers,
// once-per-minute scheduler enqueue and the admin HTTP server.
func serve(dbConnStr, port string, concurrency int) {
	logger := log.GetLogger()
	store := initStore(dbConnStr)
	defer store.Close()

	q, err := internal_queue.NewPostgresQueue(dbConnStr)
	if err != nil {
		logger.Errorf("Failed to initialize queue: %v", err)
		os.Exit(1)
	}
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := service.SystemClock{}
	executor := service.NewExecutor(store, service.LogMailer{Logger: logger}, clock, logger)
	scheduler := service.NewScheduler(store, executor, clock, logger)
	engine := service.NewEngine(store, executor, scheduler, logger)
	dispatcher := service.NewDispatcher(q, logger)

	worker := queue.NewWorker(q, logger, concurrency)
	engine.RegisterHandlers(worker)
	go worker.Run(ctx)

	cronRunner, err := scheduler.StartCron(ctx, q)
	if err != nil {
		logger.Errorf("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer cronRunner.Stop()

	server := internal_http.NewServer(store, dispatcher)
	go func() {
		if err := server.Start(port); err != nil {
			logger.Errorf("Admin server stopped: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Infof("Shutting down")
		cancel()
	case <-ctx.Done():
	}
}

func mustDBFlag(cmd *cobra.Command) string {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil || dbConnStr == "" {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		fmt.Fprintln(os.Stderr, "Error: --db connection string is required")
		os.Exit(1)
	}
	return dbConnStr
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
