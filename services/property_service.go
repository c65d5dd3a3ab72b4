package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

// PropertyAuditLogger records property store operations, both as structured
// log entries and as durable field-change rows in property_update_log.
type PropertyAuditLogger struct {
	serviceName string
	db          *sql.DB
}

// NewPropertyAuditLogger creates a new audit logger
func NewPropertyAuditLogger(db *sql.DB) *PropertyAuditLogger {
	return &PropertyAuditLogger{
		serviceName: "property-service",
		db:          db,
	}
}

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	ServiceName string                 `json:"service_name"`
	Operation   string                 `json:"operation"`
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Changes     map[string]interface{} `json:"changes,omitempty"`
	Success     bool                   `json:"success"`
	ErrorMsg    *string                `json:"error_msg,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// LogPropertyUpsert logs a property create/update with its field changes
func (a *PropertyAuditLogger) LogPropertyUpsert(ctx context.Context, before, after *models.Property, success bool, errorMsg *string) {
	operation := "CREATE"
	var changes map[string]interface{}
	if before != nil {
		operation = "UPDATE"
		changes = a.calculatePropertyChanges(before, after)
	}

	entry := AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   operation,
		EntityType:  "Property",
		EntityID:    after.ListingID,
		Changes:     changes,
		Success:     success,
		ErrorMsg:    errorMsg,
		Metadata: map[string]interface{}{
			"address": after.Address,
			"city":    after.City,
			"status":  after.Status,
			"source":  after.Source,
		},
	}

	a.logAuditEntry(entry)

	if success && len(changes) > 0 {
		a.persistChanges(ctx, after, changes)
	}
}

// persistChanges writes one update-log row per changed field. The audit
// trail must never break an upsert, so failures are logged and swallowed.
func (a *PropertyAuditLogger) persistChanges(ctx context.Context, after *models.Property, changes map[string]interface{}) {
	query := `
		INSERT INTO property_update_log (property_id, field_name, old_value, new_value, source)
		VALUES ($1, $2, $3, $4, $5)
	`

	for field, change := range changes {
		diff, ok := change.(map[string]interface{})
		if !ok {
			continue
		}
		_, err := a.db.ExecContext(ctx, query,
			after.ID, field,
			auditValueString(diff["before"]), auditValueString(diff["after"]),
			after.Source,
		)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"listing_id": after.ListingID,
				"field":      field,
			}).Warn("Failed to persist update log entry")
		}
	}
}

// auditValueString renders a change value for the update log. Nil pointers
// come back nil so the column stays NULL.
func auditValueString(v interface{}) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case *float64:
		if val == nil {
			return nil
		}
		s := strconv.FormatFloat(*val, 'f', -1, 64)
		return &s
	case *int:
		if val == nil {
			return nil
		}
		s := strconv.Itoa(*val)
		return &s
	case *string:
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		s := val.Format("2006-01-02")
		return &s
	case string:
		return &val
	default:
		s := fmt.Sprintf("%v", val)
		return &s
	}
}

// LogBatchOperation logs batch operations with summary statistics
func (a *PropertyAuditLogger) LogBatchOperation(operation string, totalCount, successCount, failureCount int, errors []string) {
	entry := AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "BATCH_" + operation,
		EntityType:  "Property",
		EntityID:    "BATCH",
		Success:     failureCount == 0,
		Metadata: map[string]interface{}{
			"total_count":   totalCount,
			"success_count": successCount,
			"failure_count": failureCount,
			"errors":        errors,
		},
	}

	if totalCount > 0 {
		entry.Metadata["success_rate"] = float64(successCount) / float64(totalCount)
	}

	if failureCount > 0 {
		errorSummary := fmt.Sprintf("Batch operation had %d failures out of %d total operations", failureCount, totalCount)
		entry.ErrorMsg = &errorSummary
	}

	a.logAuditEntry(entry)
}

// calculatePropertyChanges compares two property records and returns the changes
func (a *PropertyAuditLogger) calculatePropertyChanges(before, after *models.Property) map[string]interface{} {
	changes := make(map[string]interface{})

	if before.Address != after.Address {
		changes["address"] = map[string]interface{}{"before": before.Address, "after": after.Address}
	}
	if before.City != after.City {
		changes["city"] = map[string]interface{}{"before": before.City, "after": after.City}
	}
	if before.Status != after.Status {
		changes["status"] = map[string]interface{}{"before": before.Status, "after": after.Status}
	}
	if !a.compareFloatPointers(before.RentPCM, after.RentPCM) {
		changes["rent_pcm"] = map[string]interface{}{"before": before.RentPCM, "after": after.RentPCM}
	}
	if !a.compareIntPointers(before.Beds, after.Beds) {
		changes["beds"] = map[string]interface{}{"before": before.Beds, "after": after.Beds}
	}
	if !a.compareStringPointers(before.Area, after.Area) {
		changes["area"] = map[string]interface{}{"before": before.Area, "after": after.Area}
	}
	if !a.compareDates(before.AvailableFrom, after.AvailableFrom) {
		changes["available_from"] = map[string]interface{}{"before": before.AvailableFrom, "after": after.AvailableFrom}
	}

	return changes
}

// compareDates compares two time pointers
func (a *PropertyAuditLogger) compareDates(date1, date2 *time.Time) bool {
	if date1 == nil && date2 == nil {
		return true
	}
	if date1 == nil || date2 == nil {
		return false
	}
	return date1.Equal(*date2)
}

// compareStringPointers compares two string pointers
func (a *PropertyAuditLogger) compareStringPointers(str1, str2 *string) bool {
	if str1 == nil && str2 == nil {
		return true
	}
	if str1 == nil || str2 == nil {
		return false
	}
	return *str1 == *str2
}

// compareFloatPointers compares two float pointers
func (a *PropertyAuditLogger) compareFloatPointers(f1, f2 *float64) bool {
	if f1 == nil && f2 == nil {
		return true
	}
	if f1 == nil || f2 == nil {
		return false
	}
	return *f1 == *f2
}

// compareIntPointers compares two int pointers
func (a *PropertyAuditLogger) compareIntPointers(i1, i2 *int) bool {
	if i1 == nil && i2 == nil {
		return true
	}
	if i1 == nil || i2 == nil {
		return false
	}
	return *i1 == *i2
}

// logAuditEntry logs the audit entry using structured logging
func (a *PropertyAuditLogger) logAuditEntry(entry AuditEntry) {
	logFields := logrus.Fields{
		"audit_timestamp": entry.Timestamp,
		"service_name":    entry.ServiceName,
		"operation":       entry.Operation,
		"entity_type":     entry.EntityType,
		"entity_id":       entry.EntityID,
		"success":         entry.Success,
	}

	if entry.ErrorMsg != nil {
		logFields["error_msg"] = *entry.ErrorMsg
	}

	if len(entry.Changes) > 0 {
		logFields["changes"] = entry.Changes
	}

	for key, value := range entry.Metadata {
		logFields["meta_"+key] = value
	}

	if entry.Success {
		logrus.WithFields(logFields).Info("Audit log entry")
	} else {
		logrus.WithFields(logFields).Warn("Audit log entry - operation failed")
	}
}

// PropertyFilter narrows a property listing query.
type PropertyFilter struct {
	City          string
	Area          string
	MinRent       float64
	MaxRent       float64
	OnlyAvailable bool
	Limit         int
	Offset        int
}

type PropertyService struct {
	DB             *sql.DB
	UtilityService *UtilityService
	auditLogger    *PropertyAuditLogger
	dbOptimizer    *DatabaseOptimizer
	serviceMetrics *shared.ServiceMetrics
	dbMetrics      *shared.DatabaseMetrics
}

// DatabaseOptimizer provides database optimization features
type DatabaseOptimizer struct {
	db             *sql.DB
	connectionPool *shared.DatabaseConfig
	retryConfig    *RetryConfig
	queryOptimizer *QueryOptimizer
}

// RetryConfig holds retry configuration for database operations
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// QueryOptimizer provides query optimization features
type QueryOptimizer struct {
	enableQueryLogging bool
	slowQueryThreshold time.Duration
}

// NewDatabaseOptimizer creates a new database optimizer
func NewDatabaseOptimizer(db *sql.DB) *DatabaseOptimizer {
	config := shared.NewDefaultUnifiedConfiguration()

	return &DatabaseOptimizer{
		db:             db,
		connectionPool: &config.Database,
		retryConfig: &RetryConfig{
			MaxRetries:    3,
			BaseDelay:     100 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
		},
		queryOptimizer: &QueryOptimizer{
			enableQueryLogging: true,
			slowQueryThreshold: 500 * time.Millisecond,
		},
	}
}

// ConfigureConnectionPool configures the database connection pool
func (opt *DatabaseOptimizer) ConfigureConnectionPool() {
	opt.db.SetMaxOpenConns(opt.connectionPool.MaxOpenConns)
	opt.db.SetMaxIdleConns(opt.connectionPool.MaxIdleConns)
	opt.db.SetConnMaxLifetime(opt.connectionPool.ConnMaxLifetime)
	opt.db.SetConnMaxIdleTime(opt.connectionPool.ConnMaxIdleTime)

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     opt.connectionPool.MaxOpenConns,
		"max_idle_conns":     opt.connectionPool.MaxIdleConns,
		"conn_max_lifetime":  opt.connectionPool.ConnMaxLifetime,
		"conn_max_idle_time": opt.connectionPool.ConnMaxIdleTime,
	}).Info("Database connection pool configured")
}

// ExecuteWithRetry executes a database operation with exponential backoff retry
func (opt *DatabaseOptimizer) ExecuteWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= opt.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(opt.retryConfig.BaseDelay) *
				math.Pow(opt.retryConfig.BackoffFactor, float64(attempt-1)))

			if delay > opt.retryConfig.MaxDelay {
				delay = opt.retryConfig.MaxDelay
			}

			logrus.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   lastErr,
			}).Warn("Retrying database operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		startTime := time.Now()
		err := operation()
		duration := time.Since(startTime)

		if opt.queryOptimizer.enableQueryLogging && duration > opt.queryOptimizer.slowQueryThreshold {
			logrus.WithFields(logrus.Fields{
				"duration": duration,
				"attempt":  attempt,
			}).Warn("Slow database query detected")
		}

		if err == nil {
			if attempt > 0 {
				logrus.WithFields(logrus.Fields{
					"attempt":  attempt,
					"duration": duration,
				}).Info("Database operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !opt.isRetryableError(err) {
			logrus.WithFields(logrus.Fields{
				"error": err,
			}).Debug("Non-retryable database error")
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"max_retries": opt.retryConfig.MaxRetries,
		"final_error": lastErr,
	}).Error("Database operation failed after all retries")

	return fmt.Errorf("database operation failed after %d retries: %w", opt.retryConfig.MaxRetries, lastErr)
}

// isRetryableError determines if a database error is retryable
func (opt *DatabaseOptimizer) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"deadlock",
		"lock wait timeout",
		"connection lost",
		"server shutdown",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}

func NewPropertyService(db *sql.DB) *PropertyService {
	utilityService := NewUtilityService()
	dbOptimizer := NewDatabaseOptimizer(db)

	dbOptimizer.ConfigureConnectionPool()

	return &PropertyService{
		DB:             db,
		UtilityService: utilityService,
		auditLogger:    NewPropertyAuditLogger(db),
		dbOptimizer:    dbOptimizer,
		serviceMetrics: shared.NewServiceMetrics("Property_Service"),
		dbMetrics:      shared.NewDatabaseMetrics(),
	}
}

const propertyColumns = `id, listing_id, address, city, area, postcode, rent_pcm, beds, rooms_let,
              property_type, bills_included, ensuite, status, available_from,
              first_seen, last_seen, let_date, url, source, description, slug,
              amenities, created_at, updated_at`

// scanProperty scans one property row in propertyColumns order
func scanProperty(row interface{ Scan(...interface{}) error }) (*models.Property, error) {
	var p models.Property
	var amenities []byte
	err := row.Scan(
		&p.ID, &p.ListingID, &p.Address, &p.City, &p.Area, &p.Postcode, &p.RentPCM, &p.Beds, &p.RoomsLet,
		&p.PropertyType, &p.BillsIncluded, &p.Ensuite, &p.Status, &p.AvailableFrom,
		&p.FirstSeen, &p.LastSeen, &p.LetDate, &p.URL, &p.Source, &p.Description, &p.Slug,
		&amenities, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amenities = json.RawMessage(amenities)
	return &p, nil
}

// recalculateStatus derives the listing status from its observation dates
func (s *PropertyService) recalculateStatus(p *models.Property) {
	p.Status = s.UtilityService.CalculateAvailabilityStatus(p.FirstSeen, p.LastSeen, p.LetDate)
}

// recordQuery feeds the service and database counters for one store
// operation; queries past half a second count as slow
func (s *PropertyService) recordQuery(operation string, started time.Time, err error) {
	elapsed := time.Since(started)
	if s.serviceMetrics != nil {
		s.serviceMetrics.RecordRequest(err == nil, elapsed)
		s.serviceMetrics.IncrementCustomCounter(operation)
	}
	if s.dbMetrics != nil {
		s.dbMetrics.RecordQuery(err == nil, elapsed, elapsed > 500*time.Millisecond)
	}
}

// GetMetricsSnapshot reports the store's query counters for the performance surface
func (s *PropertyService) GetMetricsSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"success_rate":       s.serviceMetrics.GetSuccessRate(),
		"query_success_rate": s.dbMetrics.GetQuerySuccessRate(),
		"total_queries":      s.dbMetrics.TotalQueries,
		"slow_queries":       s.dbMetrics.SlowQueries,
	}
}

// GetProperties retrieves listings matching the filter, newest first
func (s *PropertyService) GetProperties(ctx context.Context, filter PropertyFilter) (properties []models.Property, err error) {
	started := time.Now()
	defer func() { s.recordQuery("get_properties", started, err) }()

	baseQuery := `SELECT ` + propertyColumns + ` FROM properties`

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(city) = LOWER($%d)", argIndex))
		args = append(args, filter.City)
		argIndex++
	}
	if filter.Area != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(area) = LOWER($%d)", argIndex))
		args = append(args, filter.Area)
		argIndex++
	}
	if filter.MinRent > 0 {
		conditions = append(conditions, fmt.Sprintf("rent_pcm >= $%d", argIndex))
		args = append(args, filter.MinRent)
		argIndex++
	}
	if filter.MaxRent > 0 {
		conditions = append(conditions, fmt.Sprintf("rent_pcm <= $%d", argIndex))
		args = append(args, filter.MaxRent)
		argIndex++
	}
	if filter.OnlyAvailable {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, models.StatusAvailable)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)
	argIndex++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	var rows *sql.Rows

	err = s.dbOptimizer.ExecuteWithRetry(ctx, func() error {
		rows, err = s.DB.QueryContext(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}

		s.recalculateStatus(p)
		properties = append(properties, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	return properties, nil
}

// GetPropertyByID retrieves a single property by its id
func (s *PropertyService) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	row := s.DB.QueryRowContext(ctx, query, id)
	p, err := scanProperty(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}

	s.recalculateStatus(p)
	return p, nil
}

// GetPropertyByListingID retrieves a property by its scraper listing key
func (s *PropertyService) GetPropertyByListingID(ctx context.Context, listingID string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE listing_id = $1`

	row := s.DB.QueryRowContext(ctx, query, listingID)
	p, err := scanProperty(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}

	s.recalculateStatus(p)
	return p, nil
}

// UpsertProperty creates or updates a scraped listing keyed by listing_id.
// Rent changes and lifecycle transitions are recorded as snapshots/events so
// the trend and timeline endpoints have history to serve.
func (s *PropertyService) UpsertProperty(ctx context.Context, item models.Property) (err error) {
	started := time.Now()
	defer func() { s.recordQuery("upsert_property", started, err) }()

	existing, err := s.GetPropertyByListingID(ctx, item.ListingID)
	if err != nil {
		return err
	}

	if item.Slug == nil || *item.Slug == "" {
		slug := s.UtilityService.GenerateSlug(item.Address)
		item.Slug = &slug
	}
	if len(item.Amenities) == 0 {
		item.Amenities = json.RawMessage("[]")
	}

	now := time.Now()
	item.LastSeen = &now
	if existing == nil {
		item.FirstSeen = &now
	}

	query := `
		INSERT INTO properties (
			listing_id, address, city, area, postcode,
			rent_pcm, beds, rooms_let, property_type, bills_included, ensuite,
			status, available_from, first_seen, last_seen, let_date,
			url, source, description, slug, amenities
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)
		ON CONFLICT (listing_id) DO UPDATE SET
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			area = EXCLUDED.area,
			postcode = EXCLUDED.postcode,
			rent_pcm = EXCLUDED.rent_pcm,
			beds = EXCLUDED.beds,
			rooms_let = EXCLUDED.rooms_let,
			property_type = EXCLUDED.property_type,
			bills_included = EXCLUDED.bills_included,
			ensuite = EXCLUDED.ensuite,
			status = EXCLUDED.status,
			available_from = EXCLUDED.available_from,
			last_seen = EXCLUDED.last_seen,
			url = EXCLUDED.url,
			description = EXCLUDED.description,
			slug = EXCLUDED.slug,
			amenities = EXCLUDED.amenities,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id;
	`

	err = s.DB.QueryRowContext(ctx, query,
		item.ListingID, item.Address, item.City, item.Area, item.Postcode,
		item.RentPCM, item.Beds, item.RoomsLet, item.PropertyType, item.BillsIncluded, item.Ensuite,
		item.Status, item.AvailableFrom, item.FirstSeen, item.LastSeen, item.LetDate,
		item.URL, item.Source, item.Description, item.Slug, item.Amenities,
	).Scan(&item.ID)

	var errorMsg *string
	if err != nil {
		errStr := err.Error()
		errorMsg = &errStr
	}
	s.auditLogger.LogPropertyUpsert(ctx, existing, &item, err == nil, errorMsg)

	if err != nil {
		return fmt.Errorf("failed to upsert property: %w", err)
	}

	// Record lifecycle events and rent history off the diff
	if existing == nil {
		s.recordEvent(ctx, item.ID.String(), models.EventListed)
		if item.RentPCM != nil {
			s.recordSnapshot(ctx, item.ID.String(), *item.RentPCM, item.Status)
		}
	} else if existing.RentPCM != nil && item.RentPCM != nil && *existing.RentPCM != *item.RentPCM {
		event := models.EventRentRise
		if *item.RentPCM < *existing.RentPCM {
			event = models.EventRentDrop
		}
		s.recordEvent(ctx, item.ID.String(), event)
		s.recordSnapshot(ctx, item.ID.String(), *item.RentPCM, item.Status)
	}

	return nil
}

// recordEvent inserts one availability event; failures are logged, not fatal
func (s *PropertyService) recordEvent(ctx context.Context, propertyID, event string) {
	query := `INSERT INTO availability_events (property_id, event) VALUES ($1, $2)`
	if _, err := s.DB.ExecContext(ctx, query, propertyID, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"property_id": propertyID,
			"event":       event,
		}).Warn("Failed to record availability event")
	}
}

// recordSnapshot inserts one rent snapshot; failures are logged, not fatal
func (s *PropertyService) recordSnapshot(ctx context.Context, propertyID string, rentPCM float64, status string) {
	query := `INSERT INTO rent_snapshots (property_id, rent_pcm, status) VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query, propertyID, rentPCM, status); err != nil {
		logrus.WithError(err).WithField("property_id", propertyID).Warn("Failed to record rent snapshot")
	}
}

// RecordRentSnapshots writes a rent snapshot for every listing with a known
// rent. The snapshot job calls this on its schedule.
func (s *PropertyService) RecordRentSnapshots(ctx context.Context) (int, error) {
	query := `
		INSERT INTO rent_snapshots (property_id, rent_pcm, status)
		SELECT id, rent_pcm, status FROM properties WHERE rent_pcm IS NOT NULL
	`

	result, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to record rent snapshots: %w", err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// MarkStaleListingsLet marks listings not seen within the threshold as let and
// records the lifecycle event. Returns the number of listings transitioned.
func (s *PropertyService) MarkStaleListingsLet(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)

	query := `
		UPDATE properties
		SET status = $1, let_date = last_seen, updated_at = CURRENT_TIMESTAMP
		WHERE status = $2 AND last_seen < $3
		RETURNING id
	`

	rows, err := s.DB.QueryContext(ctx, query, models.StatusLet, models.StatusAvailable, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale listings: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return count, fmt.Errorf("failed to scan listing id: %w", err)
		}
		s.recordEvent(ctx, id, models.EventLet)
		count++
	}

	return count, rows.Err()
}

// GetPriceTrends returns the rent history series for a property over the window
func (s *PropertyService) GetPriceTrends(ctx context.Context, propertyID string, days int) ([]models.PriceTrendPoint, error) {
	if days <= 0 {
		days = 30
	}

	query := `
		SELECT recorded_at, rent_pcm
		FROM rent_snapshots
		WHERE property_id = $1 AND recorded_at > NOW() - make_interval(days => $2)
		ORDER BY recorded_at ASC
	`

	rows, err := s.DB.QueryContext(ctx, query, propertyID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query price trends: %w", err)
	}
	defer rows.Close()

	var points []models.PriceTrendPoint
	for rows.Next() {
		var point models.PriceTrendPoint
		if err := rows.Scan(&point.RecordedAt, &point.RentPCM); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, point)
	}

	return points, rows.Err()
}

// GetAvailabilityTimeline returns the lifecycle event history for a property
func (s *PropertyService) GetAvailabilityTimeline(ctx context.Context, propertyID string) ([]models.AvailabilityEvent, error) {
	query := `
		SELECT id, property_id, event, occurred_at
		FROM availability_events
		WHERE property_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := s.DB.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability timeline: %w", err)
	}
	defer rows.Close()

	var events []models.AvailabilityEvent
	for rows.Next() {
		var event models.AvailabilityEvent
		if err := rows.Scan(&event.ID, &event.PropertyID, &event.Event, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan availability event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// GetPropertyTrends combines the rent series and lifecycle events into one
// trend view, summarising the rent direction over the window.
func (s *PropertyService) GetPropertyTrends(ctx context.Context, propertyID string, days int) (*models.PropertyTrends, error) {
	series, err := s.GetPriceTrends(ctx, propertyID, days)
	if err != nil {
		return nil, err
	}
	events, err := s.GetAvailabilityTimeline(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	trends := &models.PropertyTrends{
		PropertyID:    propertyID,
		RentSeries:    series,
		Events:        events,
		RentDirection: "stable",
	}

	if len(series) >= 2 {
		first := series[0].RentPCM
		last := series[len(series)-1].RentPCM
		if first > 0 {
			pct := (last - first) / first * 100
			trends.RentChangePct = &pct
			switch {
			case pct > 0.5:
				trends.RentDirection = "rising"
			case pct < -0.5:
				trends.RentDirection = "falling"
			}
		}
	}

	return trends, nil
}

// GetPropertyAnalytics derives per-property figures: time on market, current
// rent against the area average, and rent movement over the snapshot history.
func (s *PropertyService) GetPropertyAnalytics(ctx context.Context, propertyID string) (*models.PropertyAnalytics, error) {
	property, err := s.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, nil
	}

	analytics := &models.PropertyAnalytics{
		PropertyID: property.ID.String(),
	}

	if property.RentPCM != nil {
		analytics.CurrentRentPCM = *property.RentPCM
	}

	if property.FirstSeen != nil {
		end := time.Now()
		if property.LetDate != nil {
			end = *property.LetDate
		}
		analytics.DaysListed = end.Sub(*property.FirstSeen).Hours() / 24
	}

	// Area average over comparable available listings
	areaQuery := `
		SELECT COALESCE(AVG(rent_pcm), 0)
		FROM properties
		WHERE LOWER(city) = LOWER($1) AND rent_pcm IS NOT NULL AND id != $2
	`
	args := []interface{}{property.City, property.ID}
	if property.Area != nil {
		areaQuery = `
			SELECT COALESCE(AVG(rent_pcm), 0)
			FROM properties
			WHERE LOWER(city) = LOWER($1) AND LOWER(area) = LOWER($3)
			  AND rent_pcm IS NOT NULL AND id != $2
		`
		args = append(args, *property.Area)
	}

	if err := s.DB.QueryRowContext(ctx, areaQuery, args...).Scan(&analytics.AreaAvgRentPCM); err != nil {
		return nil, fmt.Errorf("failed to compute area average: %w", err)
	}

	if analytics.AreaAvgRentPCM > 0 && property.RentPCM != nil {
		delta := (*property.RentPCM - analytics.AreaAvgRentPCM) / analytics.AreaAvgRentPCM * 100
		analytics.RentVsAreaPct = &delta
	}

	// Rent movement from first to latest snapshot
	historyQuery := `
		SELECT COUNT(*),
		       COALESCE((SELECT rent_pcm FROM rent_snapshots WHERE property_id = $1 ORDER BY recorded_at ASC LIMIT 1), 0),
		       COALESCE((SELECT rent_pcm FROM rent_snapshots WHERE property_id = $1 ORDER BY recorded_at DESC LIMIT 1), 0)
		FROM rent_snapshots WHERE property_id = $1
	`

	var firstRent, lastRent float64
	if err := s.DB.QueryRowContext(ctx, historyQuery, propertyID).Scan(&analytics.SnapshotCount, &firstRent, &lastRent); err != nil {
		return nil, fmt.Errorf("failed to query rent history: %w", err)
	}

	if firstRent > 0 && analytics.SnapshotCount > 1 {
		change := (lastRent - firstRent) / firstRent * 100
		analytics.RentChangePct = &change
	}

	return analytics, nil
}

// CreateProperty inserts a manually supplied listing (admin endpoint)
func (s *PropertyService) CreateProperty(ctx context.Context, property *models.Property) error {
	if property.ListingID == "" {
		property.ListingID = s.UtilityService.GenerateListingKey(property.Source, "", property.Address)
	}
	if property.Status == "" {
		property.Status = models.StatusAvailable
	}

	return s.UpsertProperty(ctx, *property)
}
