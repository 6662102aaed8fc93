package storage_test

import (
	"encoding/json"
	"testing"
	"time"

	internal_storage "github.com/apexcrm/leadflow/internal/storage"
	"github.com/apexcrm/leadflow/internal/testutil"
	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store rolled back after each subtest
	newTxStore := func(t *testing.T) *internal_storage.PostgresStore {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		txStore, err := store.Begin()
		assert.NoError(t, err)
		t.Cleanup(func() { txStore.Rollback() })
		return txStore.(*internal_storage.PostgresStore)
	}

	newWorkflow := func(trigger models.TriggerType, actions string) models.Workflow {
		return models.Workflow{
			ID:          uuid.NewString(),
			Name:        "TestWorkflow",
			Description: "Run this at 5:30 PM",
			TriggerType: trigger,
			RawActions:  json.RawMessage(actions),
			IsActive:    true,
			RiskLevel:   "low",
			Source:      "test",
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
	}

	t.Run("SaveWorkflow and GetWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.LeadCreatedTrigger, `[{"type":"CREATE_TASK","title":"Call"}]`)
		assert.NoError(t, store.SaveWorkflow(wf))

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Equal(t, wf.Name, saved.Name)
		assert.Equal(t, models.LeadCreatedTrigger, saved.TriggerType)
		assert.Len(t, saved.Actions, 1)
		assert.Equal(t, "Call", saved.Actions[0].Title)
	})

	t.Run("GetWorkflow decodes malformed actions as free text", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.LeadCreatedTrigger, "follow up please")
		assert.NoError(t, store.SaveWorkflow(wf))

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Len(t, saved.Actions, 1)
		assert.Empty(t, saved.Actions[0].Type)
		assert.Equal(t, "follow up please", saved.Actions[0].Summary)
	})

	t.Run("GetNonExistingWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetWorkflow(uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListActiveWorkflowsByTrigger filters trigger and active flag", func(t *testing.T) {
		store := newTxStore(t)
		active := newWorkflow(models.LeadCreatedTrigger, `[]`)
		otherTrigger := newWorkflow(models.CallLoggedTrigger, `[]`)
		inactive := newWorkflow(models.LeadCreatedTrigger, `[]`)
		inactive.IsActive = false
		for _, wf := range []models.Workflow{active, otherTrigger, inactive} {
			assert.NoError(t, store.SaveWorkflow(wf))
		}

		matched, err := store.ListActiveWorkflowsByTrigger(models.LeadCreatedTrigger)
		assert.NoError(t, err)
		assert.Len(t, matched, 1)
		assert.Equal(t, active.ID, matched[0].ID)
	})

	t.Run("UpdateWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.LeadCreatedTrigger, `[]`)
		assert.NoError(t, store.SaveWorkflow(wf))

		wf.Name = "Renamed"
		wf.RawActions = json.RawMessage(`[{"summary":"notify the owner"}]`)
		assert.NoError(t, store.UpdateWorkflow(wf))

		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Renamed", saved.Name)
		assert.Len(t, saved.Actions, 1)
	})

	t.Run("UpdateMissingWorkflow returns not found", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.LeadCreatedTrigger, `[]`)
		assert.ErrorIs(t, store.UpdateWorkflow(wf), storage.ErrNotFound)
	})

	t.Run("SetWorkflowActive and DeleteWorkflow", func(t *testing.T) {
		store := newTxStore(t)
		wf := newWorkflow(models.LeadCreatedTrigger, `[]`)
		assert.NoError(t, store.SaveWorkflow(wf))

		assert.NoError(t, store.SetWorkflowActive(wf.ID, false))
		saved, err := store.GetWorkflow(wf.ID)
		assert.NoError(t, err)
		assert.False(t, saved.IsActive)

		assert.NoError(t, store.DeleteWorkflow(wf.ID))
		_, err = store.GetWorkflow(wf.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SaveExecutionLog and ListExecutionLogs filters", func(t *testing.T) {
		store := newTxStore(t)
		wfID := uuid.NewString()
		success := models.ExecutionLog{
			ID: uuid.NewString(), WorkflowID: wfID, WorkflowName: "Welcome Flow",
			Status: models.SuccessExecutionStatus, EntityID: "L1", EntityName: "Acme",
			EntityType: "lead", ActionExecuted: "CREATE_TASK", Actor: "AI",
			ExecutionTimeMS: 12, CreatedAt: time.Now(),
		}
		failed := models.ExecutionLog{
			ID: uuid.NewString(), WorkflowID: uuid.NewString(), WorkflowName: "Broken Flow",
			Status: models.FailedExecutionStatus, EntityID: "L2", EntityName: "Beta",
			EntityType: "lead", Actor: "AI", CreatedAt: time.Now(),
		}
		assert.NoError(t, store.SaveExecutionLog(success))
		assert.NoError(t, store.SaveExecutionLog(failed))

		all, err := store.ListExecutionLogs(storage.LogFilter{})
		assert.NoError(t, err)
		assert.Len(t, all, 2)

		byStatus, err := store.ListExecutionLogs(storage.LogFilter{Status: models.FailedExecutionStatus})
		assert.NoError(t, err)
		assert.Len(t, byStatus, 1)
		assert.Equal(t, "Broken Flow", byStatus[0].WorkflowName)

		byWorkflow, err := store.ListExecutionLogs(storage.LogFilter{WorkflowID: wfID})
		assert.NoError(t, err)
		assert.Len(t, byWorkflow, 1)

		bySearch, err := store.ListExecutionLogs(storage.LogFilter{Search: "welcome"})
		assert.NoError(t, err)
		assert.Len(t, bySearch, 1)

		byDate, err := store.ListExecutionLogs(storage.LogFilter{From: time.Now().Add(time.Hour)})
		assert.NoError(t, err)
		assert.Empty(t, byDate)
	})

	t.Run("SaveNotifications bulk inserts all rows", func(t *testing.T) {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		defer store.Close()
		rows := []models.Notification{
			{ID: uuid.NewString(), UserID: "u1", Message: "Global Alert", CreatedAt: time.Now()},
			{ID: uuid.NewString(), UserID: "u2", Message: "Global Alert", CreatedAt: time.Now()},
		}
		assert.NoError(t, store.SaveNotifications(rows))

		var count int
		assert.NoError(t, testDB.DB.Get(&count, "SELECT COUNT(*) FROM notifications WHERE message = 'Global Alert'"))
		assert.Equal(t, 2, count)
	})

	t.Run("SaveTask persists engine defaults", func(t *testing.T) {
		store := newTxStore(t)
		due := time.Now().Add(24 * time.Hour)
		task := models.Task{
			ID: uuid.NewString(), Title: "Follow up with Acme",
			Status: models.UpcomingTaskStatus, Priority: models.DefaultTaskPriority,
			DueDate: &due, RelatedLeadID: "L1", AssignedTo: "u1", CreatedAt: time.Now(),
		}
		assert.NoError(t, store.SaveTask(task))
	})

	t.Run("ListActiveUsers excludes inactive", func(t *testing.T) {
		_, err := testDB.DB.Exec("INSERT INTO users (id, name, email, status) VALUES ('u1', 'One', 'u1@x.com', 'Active'), ('u2', 'Two', 'u2@x.com', 'Inactive')")
		assert.NoError(t, err)

		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		defer store.Close()

		users, err := store.ListActiveUsers()
		assert.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Equal(t, "u1", users[0].ID)
	})
}
