package integration_tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/migrations"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/scheduler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/security"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/api"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// sentMessage is one message handed to the recording sender
type sentMessage struct {
	Channel model.Channel
	Address string
	Text    string
	SID     string
}

// recordingSender stands in for the delivery providers
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) Send(ctx context.Context, channel model.Channel, address, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := fmt.Sprintf("SM%032d", len(s.sent)+1)
	s.sent = append(s.sent, sentMessage{Channel: channel, Address: address, Text: message, SID: sid})
	return sid, nil
}

func (s *recordingSender) Messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

// testApp is the service wired the way main wires it, with fake providers
type testApp struct {
	db       *pgxpool.Pool
	router   *gin.Engine
	driver   *scheduler.Driver
	sender   *recordingSender
	storage  *azure.MemoryReportStorage
	reminder *repository.ReminderRepository
}

// setupTestDatabase connects to TEST_DATABASE_URL when set and otherwise
// starts a PostgreSQL container. Migrations are applied in both cases.
func setupTestDatabase(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	terminate := func() {}
	if dbURL == "" {
		container, err := postgres.Run(ctx,
			"postgres:15-alpine",
			postgres.WithDatabase("reminders_integration"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err)
		terminate = func() {
			if err := container.Terminate(ctx); err != nil {
				t.Logf("failed to terminate container: %s", err)
			}
		}

		dbURL, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	sqlDB, err := sql.Open("postgres", dbURL)
	require.NoError(t, err, "Should be able to open database")
	_, err = migrations.Apply(ctx, sqlDB)
	require.NoError(t, err, "Should be able to apply migrations")
	require.NoError(t, sqlDB.Close())

	db, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "Should be able to connect to database")
	require.NoError(t, db.Ping(ctx), "Should be able to ping database")

	return db, func() {
		db.Close()
		terminate()
	}
}

func newTestApp(t *testing.T, ctx context.Context) (*testApp, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDatabase(t, ctx)
	logger := zap.NewNop()
	loc := time.UTC

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	responseCipher, err := security.NewResponseCipher(key)
	require.NoError(t, err)

	assignmentRepo := repository.NewAssignmentRepository(db, logger)
	contactRepo := repository.NewContactRepository(db, logger)
	scheduleRepo := repository.NewScheduleRepository(db, logger)
	reminderRepo := repository.NewReminderRepository(db, responseCipher, logger)
	eventRepo := repository.NewEventRepository(db, logger)
	adherenceRepo := repository.NewAdherenceRepository(db, logger)
	deliveryEventRepo := repository.NewDeliveryEventRepository(db, logger)
	reportRepo := repository.NewReportRepository(db, logger)
	patientDataRepo := repository.NewPatientDataRepository(db, logger)
	auditLogger := audit.NewLogger(db, logger)

	storage := azure.NewMemoryReportStorage(logger)
	sender := &recordingSender{}

	contacts := service.NewContactResolver(contactRepo, time.Minute, auditLogger, logger)
	calculator := service.NewAdherenceCalculator(eventRepo, adherenceRepo, loc, logger)
	generator := service.NewReminderGenerator(scheduleRepo, assignmentRepo, reminderRepo, loc, 3, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, assignmentRepo, generator, auditLogger, 7, loc, logger)
	reminderService := service.NewReminderService(reminderRepo, deliveryEventRepo, auditLogger, logger)
	eventService := service.NewEventService(eventRepo, assignmentRepo, calculator, auditLogger, loc, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, scheduleRepo, generator, auditLogger, 7, logger)
	correlator := service.NewCorrelator(reminderRepo, eventRepo, deliveryEventRepo, contacts, calculator, 24*time.Hour, loc, logger)
	dispatcher := service.NewDispatcher(reminderRepo, scheduleRepo, eventRepo, deliveryEventRepo, contacts, sender, 24*time.Hour, 100, logger)
	escalator := service.NewEscalator(reminderRepo, 24*time.Hour, logger)
	reportService := service.NewReportService(reportRepo, eventRepo, assignmentRepo, contacts, storage, pdf.NewPDFGenerator(logger), auditLogger, loc, logger)
	patientDataService := service.NewPatientDataService(scheduleRepo, reminderRepo, eventRepo, adherenceRepo, contactRepo, reportRepo, patientDataRepo, storage, contacts, auditLogger, logger)

	driver, err := scheduler.NewDriver(scheduler.Config{
		DispatchSpec:   "@every 1h",
		GenerationSpec: "@every 24h",
		DaysAhead:      7,
		Location:       loc,
	}, dispatcher, escalator, generator, logger)
	require.NoError(t, err)

	middleware.RegisterValidators()
	doc, err := api.GetSwagger()
	require.NoError(t, err)
	validator, err := middleware.OpenAPIValidator(doc, logger)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger), middleware.RequestIDMiddleware())
	handler.RegisterRoutes(router, handler.Handlers{
		Health:      handler.NewHealthHandler(db, "integration", logger),
		Schedules:   handler.NewScheduleHandler(scheduleService, logger),
		Reminders:   handler.NewReminderHandler(reminderService, logger),
		Events:      handler.NewEventHandler(eventService, logger),
		Adherence:   handler.NewAdherenceHandler(calculator, reportService, logger),
		Assignments: handler.NewAssignmentHandler(assignmentService, logger),
		Patients:    handler.NewPatientHandler(contacts, patientDataService, logger),
		Webhooks:    handler.NewWebhookHandler(reminderService, correlator, nil, "", logger),
	}, prometheus.NewRegistry(), validator)

	return &testApp{
		db:       db,
		router:   router,
		driver:   driver,
		sender:   sender,
		storage:  storage,
		reminder: reminderRepo,
	}, cleanup
}

// doJSON performs a JSON request and decodes the response into out when it is not nil
func (a *testApp) doJSON(t *testing.T, method, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.ActorHeader, "integration-test")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	require.Equal(t, wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
}

// postForm posts a provider webhook
func (a *testApp) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// makeDue moves the earliest pending reminder of a schedule to one minute ago
func (a *testApp) makeDue(t *testing.T, ctx context.Context, scheduleID string) string {
	t.Helper()
	var id string
	err := a.db.QueryRow(ctx, `
		UPDATE reminders
		SET scheduled_time = now() - interval '1 minute',
		    actual_dose_time = now() - interval '1 minute'
		WHERE id = (
			SELECT id FROM reminders
			WHERE schedule_id = $1 AND status = 'pending'
			ORDER BY scheduled_time
			LIMIT 1
		)
		RETURNING id`, scheduleID).Scan(&id)
	require.NoError(t, err, "schedule should have a pending reminder")
	return id
}

// seedPatient registers an active assignment and a contact with an SMS number
func (a *testApp) seedPatient(t *testing.T, patientID, assignmentID, phone string) {
	t.Helper()
	a.doJSON(t, http.MethodPut, "/api/v1/assignments/"+assignmentID, map[string]interface{}{
		"patient_id":      patientID,
		"medication_name": "Metformin",
		"dosage":          "500mg",
		"frequency":       "twice daily",
		"status":          "active",
	}, http.StatusOK, nil)

	a.doJSON(t, http.MethodPut, "/api/v1/patients/"+patientID+"/contact", map[string]interface{}{
		"name":  "Test Patient",
		"phone": phone,
	}, http.StatusOK, nil)
}

// randomPhone returns an E.164 number unlikely to collide between tests
func randomPhone() string {
	return fmt.Sprintf("+3630%07d", rand.Intn(10_000_000))
}
