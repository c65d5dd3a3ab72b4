package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

var DB *sql.DB

// Connect establishes database connection with enhanced configuration
func Connect(dbURL string) error {
	config := shared.NewDefaultUnifiedConfiguration().Database
	return ConnectWithConfig(dbURL, &config)
}

// ConnectWithConfig establishes database connection with custom configuration
func ConnectWithConfig(dbURL string, config *shared.DatabaseConfig) error {
	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(config.MaxOpenConns)
	DB.SetMaxIdleConns(config.MaxIdleConns)
	DB.SetConnMaxLifetime(config.ConnMaxLifetime)
	DB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()

	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     config.MaxOpenConns,
		"max_idle_conns":     config.MaxIdleConns,
		"conn_max_lifetime":  config.ConnMaxLifetime,
		"conn_max_idle_time": config.ConnMaxIdleTime,
	}).Info("Connected to database successfully with enhanced configuration")

	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		logrus.Info("Database connection closed")
	}
}

// ValidateAndOptimizeSchema performs schema validation and optimization
func ValidateAndOptimizeSchema() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	logrus.Info("Starting database schema validation and optimization")

	validator := NewSchemaValidator(DB)

	report, err := validator.ValidateSchemaCompatibility()
	if err != nil {
		return fmt.Errorf("failed to validate schema compatibility: %w", err)
	}

	if !report.OverallValid {
		logrus.WithFields(logrus.Fields{
			"total_issues":    report.TotalIssues,
			"critical_issues": report.CriticalIssues,
		}).Warn("Schema validation found issues")

		detailedReport := validator.GenerateSchemaReport(report)
		logrus.Debug("Schema validation report:\n" + detailedReport)
	} else {
		logrus.Info("Schema validation passed successfully")
	}

	var missingIndexes []string
	for _, result := range report.ValidationResults {
		missingIndexes = append(missingIndexes, result.MissingIndexes...)
	}

	if len(missingIndexes) > 0 {
		logrus.WithField("missing_indexes_count", len(missingIndexes)).Info("Creating missing indexes")
		if err := validator.CreateMissingIndexes(missingIndexes); err != nil {
			return fmt.Errorf("failed to create missing indexes: %w", err)
		}
	}

	if err := validator.UpdateTableStatistics(); err != nil {
		return fmt.Errorf("failed to update table statistics: %w", err)
	}

	logrus.Info("Completed database schema validation and optimization")
	return nil
}

// GetConnectionStats returns current database connection pool statistics
func GetConnectionStats() sql.DBStats {
	if DB == nil {
		return sql.DBStats{}
	}
	return DB.Stats()
}

// HealthCheck performs a comprehensive database health check
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Check connection pool health
	stats := DB.Stats()
	if stats.OpenConnections == 0 {
		return fmt.Errorf("no open database connections")
	}

	logrus.WithFields(logrus.Fields{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration,
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}).Debug("Database connection pool health check")

	return nil
}

func Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	statements := parseSQLStatements(string(content))

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)

		if stmt == "" {
			continue
		}

		_, err = DB.Exec(stmt)
		if err != nil {
			// Log the error but continue with other statements for migration scripts
			// that handle existing tables
			logrus.Warnf("Migration statement failed (continuing): %v", err)
		}
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// parseSQLStatements parses SQL content into individual statements
// This handles multi-line statements and comments properly
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	lines := strings.Split(content, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)

		// Skip empty lines and comment-only lines
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		// If line ends with semicolon, we have a complete statement
		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSuffix(currentStatement.String(), ";")
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	// Handle any remaining statement without semicolon
	if currentStatement.Len() > 0 {
		stmt := strings.TrimSpace(currentStatement.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}

// ValidationResult represents the result of schema validation
type ValidationResult struct {
	TableName          string
	IsValid            bool
	MissingColumns     []string
	MissingIndexes     []string
	InvalidConstraints []string
	Recommendations    []string
}

// SchemaCompatibilityReport contains comprehensive schema validation results
type SchemaCompatibilityReport struct {
	ValidationResults []ValidationResult
	OverallValid      bool
	TotalIssues       int
	CriticalIssues    int
	Recommendations   []string
}

// SchemaValidator validates that the live schema matches what the listing
// pipeline and market aggregation queries expect
type SchemaValidator struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSchemaValidator creates a new schema validator instance
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{
		db:     db,
		logger: logrus.New(),
	}
}

// ValidateSchemaCompatibility performs comprehensive schema validation
func (v *SchemaValidator) ValidateSchemaCompatibility() (*SchemaCompatibilityReport, error) {
	v.logger.Info("Starting comprehensive schema compatibility validation")

	report := &SchemaCompatibilityReport{
		ValidationResults: make([]ValidationResult, 0),
		OverallValid:      true,
	}

	propertiesResult, err := v.validatePropertiesTableStructure()
	if err != nil {
		return nil, fmt.Errorf("failed to validate properties table structure: %w", err)
	}
	report.ValidationResults = append(report.ValidationResults, *propertiesResult)

	snapshotsResult, err := v.validateRentSnapshotsTableStructure()
	if err != nil {
		return nil, fmt.Errorf("failed to validate rent snapshots table structure: %w", err)
	}
	report.ValidationResults = append(report.ValidationResults, *snapshotsResult)

	eventsResult, err := v.validateAvailabilityEventsTableStructure()
	if err != nil {
		return nil, fmt.Errorf("failed to validate availability events table structure: %w", err)
	}
	report.ValidationResults = append(report.ValidationResults, *eventsResult)

	auditResult, err := v.validateUpdateLogTableStructure()
	if err != nil {
		return nil, fmt.Errorf("failed to validate update log table structure: %w", err)
	}
	report.ValidationResults = append(report.ValidationResults, *auditResult)

	indexResult, err := v.validateOptimizedIndexes()
	if err != nil {
		return nil, fmt.Errorf("failed to validate optimized indexes: %w", err)
	}
	report.ValidationResults = append(report.ValidationResults, *indexResult)

	// Calculate overall validation status
	for _, result := range report.ValidationResults {
		if !result.IsValid {
			report.OverallValid = false
			report.TotalIssues += len(result.MissingColumns) + len(result.MissingIndexes) + len(result.InvalidConstraints)

			// Critical issues are missing columns or invalid constraints
			report.CriticalIssues += len(result.MissingColumns) + len(result.InvalidConstraints)
		}
		report.Recommendations = append(report.Recommendations, result.Recommendations...)
	}

	v.logger.WithFields(logrus.Fields{
		"overall_valid":   report.OverallValid,
		"total_issues":    report.TotalIssues,
		"critical_issues": report.CriticalIssues,
	}).Info("Completed schema compatibility validation")

	return report, nil
}

// validatePropertiesTableStructure validates the main properties table structure
func (v *SchemaValidator) validatePropertiesTableStructure() (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:          "properties",
		IsValid:            true,
		MissingColumns:     make([]string, 0),
		MissingIndexes:     make([]string, 0),
		InvalidConstraints: make([]string, 0),
		Recommendations:    make([]string, 0),
	}

	exists, err := v.tableExists("properties")
	if err != nil {
		return nil, fmt.Errorf("failed to check if properties table exists: %w", err)
	}
	if !exists {
		result.IsValid = false
		result.MissingColumns = append(result.MissingColumns, "entire table missing")
		result.Recommendations = append(result.Recommendations, "Create properties table with complete schema")
		return result, nil
	}

	requiredColumns := map[string]string{
		"id":             "uuid",
		"listing_id":     "varchar(255)",
		"address":        "varchar(500)",
		"city":           "varchar(100)",
		"area":           "varchar(100)",
		"postcode":       "varchar(20)",
		"rent_pcm":       "decimal(10,2)",
		"beds":           "integer",
		"rooms_let":      "integer",
		"property_type":  "varchar(100)",
		"bills_included": "boolean",
		"ensuite":        "boolean",
		"status":         "varchar(50)",
		"available_from": "timestamp",
		"first_seen":     "timestamp",
		"last_seen":      "timestamp",
		"let_date":       "timestamp",
		"url":            "varchar(500)",
		"source":         "varchar(100)",
		"description":    "text",
		"slug":           "varchar(255)",
		"amenities":      "jsonb",
		"created_at":     "timestamp",
		"updated_at":     "timestamp",
		"created_by":     "varchar(100)",
	}

	existingColumns, err := v.getTableColumns("properties")
	if err != nil {
		return nil, fmt.Errorf("failed to get properties columns: %w", err)
	}

	for columnName, expectedType := range requiredColumns {
		if actualType, exists := existingColumns[columnName]; !exists {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, fmt.Sprintf("%s (%s)", columnName, expectedType))
		} else if !v.isCompatibleType(actualType, expectedType) {
			result.InvalidConstraints = append(result.InvalidConstraints,
				fmt.Sprintf("column %s has type %s, expected %s", columnName, actualType, expectedType))
		}
	}

	constraints, err := v.getTableConstraints("properties")
	if err != nil {
		return nil, fmt.Errorf("failed to get properties constraints: %w", err)
	}

	requiredConstraints := []string{
		"properties_listing_id_key",
		"properties_listing_id_not_empty",
		"properties_address_not_empty",
		"properties_city_not_empty",
		"properties_status_not_empty",
		"properties_rent_positive",
		"properties_beds_positive",
	}

	for _, constraintName := range requiredConstraints {
		if !v.constraintExists(constraints, constraintName) {
			result.InvalidConstraints = append(result.InvalidConstraints, constraintName)
			result.IsValid = false
		}
	}

	if len(result.MissingColumns) > 0 || len(result.InvalidConstraints) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Update properties table schema to support the listing pipeline")
	}

	return result, nil
}

// validateRentSnapshotsTableStructure validates the rent history table structure
func (v *SchemaValidator) validateRentSnapshotsTableStructure() (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:          "rent_snapshots",
		IsValid:            true,
		MissingColumns:     make([]string, 0),
		MissingIndexes:     make([]string, 0),
		InvalidConstraints: make([]string, 0),
		Recommendations:    make([]string, 0),
	}

	exists, err := v.tableExists("rent_snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to check if rent_snapshots table exists: %w", err)
	}
	if !exists {
		result.IsValid = false
		result.MissingColumns = append(result.MissingColumns, "entire table missing")
		result.Recommendations = append(result.Recommendations, "Create rent_snapshots table for price trend history")
		return result, nil
	}

	requiredColumns := map[string]string{
		"id":          "uuid",
		"property_id": "uuid",
		"rent_pcm":    "decimal(10,2)",
		"status":      "varchar(50)",
		"recorded_at": "timestamp",
	}

	existingColumns, err := v.getTableColumns("rent_snapshots")
	if err != nil {
		return nil, fmt.Errorf("failed to get rent_snapshots columns: %w", err)
	}

	for columnName, expectedType := range requiredColumns {
		if actualType, exists := existingColumns[columnName]; !exists {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, fmt.Sprintf("%s (%s)", columnName, expectedType))
		} else if !v.isCompatibleType(actualType, expectedType) {
			result.InvalidConstraints = append(result.InvalidConstraints,
				fmt.Sprintf("column %s has type %s, expected %s", columnName, actualType, expectedType))
		}
	}

	return result, nil
}

// validateAvailabilityEventsTableStructure validates the listing event table structure
func (v *SchemaValidator) validateAvailabilityEventsTableStructure() (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:          "availability_events",
		IsValid:            true,
		MissingColumns:     make([]string, 0),
		MissingIndexes:     make([]string, 0),
		InvalidConstraints: make([]string, 0),
		Recommendations:    make([]string, 0),
	}

	exists, err := v.tableExists("availability_events")
	if err != nil {
		return nil, fmt.Errorf("failed to check if availability_events table exists: %w", err)
	}
	if !exists {
		result.IsValid = false
		result.MissingColumns = append(result.MissingColumns, "entire table missing")
		result.Recommendations = append(result.Recommendations, "Create availability_events table for the listing timeline")
		return result, nil
	}

	requiredColumns := map[string]string{
		"id":          "uuid",
		"property_id": "uuid",
		"event":       "varchar(50)",
		"rent_pcm":    "decimal(10,2)",
		"occurred_at": "timestamp",
	}

	existingColumns, err := v.getTableColumns("availability_events")
	if err != nil {
		return nil, fmt.Errorf("failed to get availability_events columns: %w", err)
	}

	for columnName, expectedType := range requiredColumns {
		if actualType, exists := existingColumns[columnName]; !exists {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, fmt.Sprintf("%s (%s)", columnName, expectedType))
		} else if !v.isCompatibleType(actualType, expectedType) {
			result.InvalidConstraints = append(result.InvalidConstraints,
				fmt.Sprintf("column %s has type %s, expected %s", columnName, actualType, expectedType))
		}
	}

	return result, nil
}

// validateUpdateLogTableStructure validates the audit log table structure
func (v *SchemaValidator) validateUpdateLogTableStructure() (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:          "property_update_log",
		IsValid:            true,
		MissingColumns:     make([]string, 0),
		MissingIndexes:     make([]string, 0),
		InvalidConstraints: make([]string, 0),
		Recommendations:    make([]string, 0),
	}

	exists, err := v.tableExists("property_update_log")
	if err != nil {
		return nil, fmt.Errorf("failed to check if property_update_log table exists: %w", err)
	}
	if !exists {
		result.IsValid = false
		result.MissingColumns = append(result.MissingColumns, "entire table missing")
		result.Recommendations = append(result.Recommendations, "Create property_update_log table for audit trail")
		return result, nil
	}

	requiredColumns := map[string]string{
		"id":          "uuid",
		"property_id": "uuid",
		"field_name":  "varchar(100)",
		"old_value":   "text",
		"new_value":   "text",
		"source":      "varchar(100)",
		"timestamp":   "timestamp",
	}

	existingColumns, err := v.getTableColumns("property_update_log")
	if err != nil {
		return nil, fmt.Errorf("failed to get property_update_log columns: %w", err)
	}

	for columnName, expectedType := range requiredColumns {
		if actualType, exists := existingColumns[columnName]; !exists {
			result.IsValid = false
			result.MissingColumns = append(result.MissingColumns, fmt.Sprintf("%s (%s)", columnName, expectedType))
		} else if !v.isCompatibleType(actualType, expectedType) {
			result.InvalidConstraints = append(result.InvalidConstraints,
				fmt.Sprintf("column %s has type %s, expected %s", columnName, actualType, expectedType))
		}
	}

	return result, nil
}

// validateOptimizedIndexes validates that all required indexes exist for optimized queries
func (v *SchemaValidator) validateOptimizedIndexes() (*ValidationResult, error) {
	result := &ValidationResult{
		TableName:          "database_indexes",
		IsValid:            true,
		MissingColumns:     make([]string, 0),
		MissingIndexes:     make([]string, 0),
		InvalidConstraints: make([]string, 0),
		Recommendations:    make([]string, 0),
	}

	existingIndexes, err := v.getAllIndexes()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing indexes: %w", err)
	}

	// Required indexes for the listing browse, market aggregation and
	// trend queries
	requiredIndexes := map[string]string{
		"idx_properties_listing_id":     "properties(listing_id)",
		"idx_properties_city":           "properties(city)",
		"idx_properties_city_area":      "properties(city, area) WHERE area IS NOT NULL",
		"idx_properties_status":         "properties(status)",
		"idx_properties_city_status":    "properties(city, status)",
		"idx_properties_rent":           "properties(rent_pcm) WHERE rent_pcm IS NOT NULL",
		"idx_properties_first_seen":     "properties(first_seen DESC)",
		"idx_properties_last_seen":      "properties(last_seen DESC)",
		"idx_properties_let_date":       "properties(let_date) WHERE let_date IS NOT NULL",
		"idx_properties_available_from": "properties(available_from) WHERE available_from IS NOT NULL",
		"idx_properties_browse":         "properties(city, status, rent_pcm)",

		"idx_rent_snapshots_property":    "rent_snapshots(property_id)",
		"idx_rent_snapshots_recorded_at": "rent_snapshots(recorded_at DESC)",
		"idx_rent_snapshots_lookup":      "rent_snapshots(property_id, recorded_at DESC)",

		"idx_availability_events_property":    "availability_events(property_id)",
		"idx_availability_events_occurred_at": "availability_events(occurred_at DESC)",
		"idx_availability_events_type":        "availability_events(event)",

		"idx_property_update_log_property":  "property_update_log(property_id)",
		"idx_property_update_log_timestamp": "property_update_log(timestamp DESC)",
	}

	for indexName, indexDefinition := range requiredIndexes {
		if !v.indexExists(existingIndexes, indexName) {
			result.IsValid = false
			result.MissingIndexes = append(result.MissingIndexes, fmt.Sprintf("%s ON %s", indexName, indexDefinition))
		}
	}

	if len(result.MissingIndexes) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Create missing indexes to optimize listing browse and market aggregation queries")
	}

	return result, nil
}

// Helper methods for schema validation

// tableExists checks if a table exists in the database
func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := v.db.QueryRow(query, tableName).Scan(&exists)
	return exists, err
}

// getTableColumns returns a map of column names to their data types
func (v *SchemaValidator) getTableColumns(tableName string) (map[string]string, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := v.db.Query(query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, err
		}
		columns[columnName] = dataType
	}

	return columns, rows.Err()
}

// getTableConstraints returns a list of constraint names for a table
func (v *SchemaValidator) getTableConstraints(tableName string) ([]string, error) {
	query := `
		SELECT constraint_name
		FROM information_schema.table_constraints
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := v.db.Query(query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []string
	for rows.Next() {
		var constraintName string
		if err := rows.Scan(&constraintName); err != nil {
			return nil, err
		}
		constraints = append(constraints, constraintName)
	}

	return constraints, rows.Err()
}

// getAllIndexes returns a list of all index names in the database
func (v *SchemaValidator) getAllIndexes() ([]string, error) {
	query := `
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public'
	`
	rows, err := v.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var indexName string
		if err := rows.Scan(&indexName); err != nil {
			return nil, err
		}
		indexes = append(indexes, indexName)
	}

	return indexes, rows.Err()
}

// isCompatibleType checks if the actual column type is compatible with the expected type
func (v *SchemaValidator) isCompatibleType(actualType, expectedType string) bool {
	actualType = strings.ToLower(strings.TrimSpace(actualType))
	expectedType = strings.ToLower(strings.TrimSpace(expectedType))

	// Handle common PostgreSQL type variations
	typeMapping := map[string][]string{
		"uuid":          {"uuid"},
		"varchar(20)":   {"character varying", "varchar", "text"},
		"varchar(50)":   {"character varying", "varchar", "text"},
		"varchar(100)":  {"character varying", "varchar", "text"},
		"varchar(255)":  {"character varying", "varchar", "text"},
		"varchar(500)":  {"character varying", "varchar", "text"},
		"text":          {"text", "character varying", "varchar"},
		"timestamp":     {"timestamp without time zone", "timestamp", "timestamptz"},
		"decimal(10,2)": {"numeric", "decimal", "real", "double precision"},
		"integer":       {"integer", "int", "int4"},
		"boolean":       {"boolean", "bool"},
		"jsonb":         {"jsonb", "json"},
	}

	if compatibleTypes, exists := typeMapping[expectedType]; exists {
		for _, compatibleType := range compatibleTypes {
			if strings.Contains(actualType, compatibleType) {
				return true
			}
		}
	}

	// Direct match
	return strings.Contains(actualType, expectedType) || strings.Contains(expectedType, actualType)
}

// constraintExists checks if a constraint exists in the list of constraints
func (v *SchemaValidator) constraintExists(constraints []string, constraintName string) bool {
	for _, constraint := range constraints {
		if constraint == constraintName {
			return true
		}
	}
	return false
}

// indexExists checks if an index exists in the list of indexes
func (v *SchemaValidator) indexExists(indexes []string, indexName string) bool {
	for _, index := range indexes {
		if index == indexName {
			return true
		}
	}
	return false
}

// CreateMissingIndexes creates any missing indexes identified during validation
func (v *SchemaValidator) CreateMissingIndexes(missingIndexes []string) error {
	v.logger.WithField("missing_indexes_count", len(missingIndexes)).Info("Creating missing database indexes")

	indexStatements := map[string]string{
		"idx_properties_listing_id":     "CREATE UNIQUE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_listing_id ON properties(listing_id)",
		"idx_properties_city":           "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_city ON properties(city)",
		"idx_properties_city_area":      "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_city_area ON properties(city, area) WHERE area IS NOT NULL",
		"idx_properties_status":         "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_status ON properties(status)",
		"idx_properties_city_status":    "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_city_status ON properties(city, status)",
		"idx_properties_rent":           "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_rent ON properties(rent_pcm) WHERE rent_pcm IS NOT NULL",
		"idx_properties_first_seen":     "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_first_seen ON properties(first_seen DESC)",
		"idx_properties_last_seen":      "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_last_seen ON properties(last_seen DESC)",
		"idx_properties_let_date":       "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_let_date ON properties(let_date) WHERE let_date IS NOT NULL",
		"idx_properties_available_from": "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_available_from ON properties(available_from) WHERE available_from IS NOT NULL",
		"idx_properties_browse":         "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_properties_browse ON properties(city, status, rent_pcm)",

		"idx_rent_snapshots_property":    "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_rent_snapshots_property ON rent_snapshots(property_id)",
		"idx_rent_snapshots_recorded_at": "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_rent_snapshots_recorded_at ON rent_snapshots(recorded_at DESC)",
		"idx_rent_snapshots_lookup":      "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_rent_snapshots_lookup ON rent_snapshots(property_id, recorded_at DESC)",

		"idx_availability_events_property":    "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_availability_events_property ON availability_events(property_id)",
		"idx_availability_events_occurred_at": "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_availability_events_occurred_at ON availability_events(occurred_at DESC)",
		"idx_availability_events_type":        "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_availability_events_type ON availability_events(event)",

		"idx_property_update_log_property":  "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_property_update_log_property ON property_update_log(property_id)",
		"idx_property_update_log_timestamp": "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_property_update_log_timestamp ON property_update_log(timestamp DESC)",
	}

	for _, missingIndex := range missingIndexes {
		// Extract index name from the missing index description
		indexName := strings.Split(missingIndex, " ON ")[0]

		if statement, exists := indexStatements[indexName]; exists {
			v.logger.WithField("index_name", indexName).Info("Creating missing index")

			// Use a timeout for index creation to prevent hanging
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			_, err := v.db.ExecContext(ctx, statement)
			if err != nil {
				v.logger.WithFields(logrus.Fields{
					"index_name": indexName,
					"error":      err,
				}).Error("Failed to create index")
				return fmt.Errorf("failed to create index %s: %w", indexName, err)
			}

			v.logger.WithField("index_name", indexName).Info("Successfully created index")
		} else {
			v.logger.WithField("index_name", indexName).Warn("No creation statement found for missing index")
		}
	}

	v.logger.Info("Completed creating missing database indexes")
	return nil
}

// UpdateTableStatistics refreshes planner statistics for the core tables
func (v *SchemaValidator) UpdateTableStatistics() error {
	v.logger.Info("Updating table statistics for optimal query planning")

	tables := []string{"properties", "rent_snapshots", "availability_events", "property_update_log"}

	for _, tableName := range tables {
		query := fmt.Sprintf("ANALYZE %s", tableName)
		_, err := v.db.Exec(query)
		if err != nil {
			v.logger.WithFields(logrus.Fields{
				"table": tableName,
				"error": err,
			}).Warn("Failed to analyze table")
			continue
		}

		v.logger.WithField("table", tableName).Debug("Updated table statistics")
	}

	v.logger.Info("Completed table statistics update")
	return nil
}

// GenerateSchemaReport generates a comprehensive report of the schema validation results
func (v *SchemaValidator) GenerateSchemaReport(report *SchemaCompatibilityReport) string {
	var reportBuilder strings.Builder

	reportBuilder.WriteString("=== Database Schema Compatibility Report ===\n\n")
	reportBuilder.WriteString(fmt.Sprintf("Overall Status: %s\n", map[bool]string{true: "VALID", false: "INVALID"}[report.OverallValid]))
	reportBuilder.WriteString(fmt.Sprintf("Total Issues: %d\n", report.TotalIssues))
	reportBuilder.WriteString(fmt.Sprintf("Critical Issues: %d\n\n", report.CriticalIssues))

	for _, result := range report.ValidationResults {
		reportBuilder.WriteString(fmt.Sprintf("Table: %s - Status: %s\n", result.TableName, map[bool]string{true: "VALID", false: "INVALID"}[result.IsValid]))

		if len(result.MissingColumns) > 0 {
			reportBuilder.WriteString("  Missing Columns:\n")
			for _, column := range result.MissingColumns {
				reportBuilder.WriteString(fmt.Sprintf("    - %s\n", column))
			}
		}

		if len(result.MissingIndexes) > 0 {
			reportBuilder.WriteString("  Missing Indexes:\n")
			for _, index := range result.MissingIndexes {
				reportBuilder.WriteString(fmt.Sprintf("    - %s\n", index))
			}
		}

		if len(result.InvalidConstraints) > 0 {
			reportBuilder.WriteString("  Invalid Constraints:\n")
			for _, constraint := range result.InvalidConstraints {
				reportBuilder.WriteString(fmt.Sprintf("    - %s\n", constraint))
			}
		}

		reportBuilder.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		reportBuilder.WriteString("Recommendations:\n")
		for _, recommendation := range report.Recommendations {
			reportBuilder.WriteString(fmt.Sprintf("  - %s\n", recommendation))
		}
	}

	return reportBuilder.String()
}
