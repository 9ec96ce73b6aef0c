package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultRecentIssues is how many issues Stats returns when asked for none.
const DefaultRecentIssues = 10

// ErrNotFound is returned when a lookup matches no issue.
var ErrNotFound = errors.New("issue not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Issue{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveIssue inserts a new issue row.
func (d *Database) SaveIssue(issue *Issue) error {
	if issue == nil {
		return errors.New("issue is nil")
	}
	issue.Text = strings.TrimSpace(issue.Text)
	issue.Cap = strings.TrimSpace(issue.Cap)
	if issue.Source == "" {
		issue.Source = "web"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(issue).Error
}

// GetIssue retrieves an issue by ID.
func (d *Database) GetIssue(id uint) (*Issue, error) {
	var issue Issue
	if err := d.gorm.First(&issue, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// IssueQuery encapsulates filters and pagination for listing issues.
type IssueQuery struct {
	Category string
	Urgency  string
	Cap      string
	Status   string
	Offset   int
	Limit    int
}

// ListIssues returns paginated issues, newest first, applying optional filters.
func (d *Database) ListIssues(opts IssueQuery) ([]Issue, int64, error) {
	base := d.gorm.Model(&Issue{})
	if category := strings.TrimSpace(opts.Category); category != "" {
		base = base.Where("json_extract(classification_json, '$.category') = ?", category)
	}
	if urgency := strings.TrimSpace(opts.Urgency); urgency != "" {
		base = base.Where("json_extract(classification_json, '$.urgency') = ?", strings.ToLower(urgency))
	}
	if postalCode := strings.TrimSpace(opts.Cap); postalCode != "" {
		base = base.Where("cap = ?", postalCode)
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		base = base.Where("status = ?", strings.ToLower(status))
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []Issue
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats aggregates counts over every stored issue.
type Stats struct {
	Total       int64
	HighUrgency int64
	TopCategory *string
	TopZone     *string
	Categories  map[string]int64
	Zones       map[string]int64
	Recent      []Issue
}

type bucket struct {
	Name  *string
	Total int64
}

// Stats computes totals, distributions and the most recent issues.
func (d *Database) Stats(recent int) (Stats, error) {
	if recent <= 0 {
		recent = DefaultRecentIssues
	}
	stats := Stats{Categories: map[string]int64{}, Zones: map[string]int64{}}

	if err := d.gorm.Model(&Issue{}).Count(&stats.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("count issues: %w", err)
	}
	if err := d.gorm.Model(&Issue{}).
		Where("json_extract(classification_json, '$.urgency') = ?", "high").
		Count(&stats.HighUrgency).Error; err != nil {
		return Stats{}, fmt.Errorf("count high urgency: %w", err)
	}

	var categories []bucket
	if err := d.gorm.Model(&Issue{}).
		Select("json_extract(classification_json, '$.category') AS name, COUNT(*) AS total").
		Group("name").
		Scan(&categories).Error; err != nil {
		return Stats{}, fmt.Errorf("category distribution: %w", err)
	}
	fillDistribution(stats.Categories, categories)

	var zones []bucket
	if err := d.gorm.Model(&Issue{}).
		Select("cap AS name, COUNT(*) AS total").
		Group("cap").
		Scan(&zones).Error; err != nil {
		return Stats{}, fmt.Errorf("zone distribution: %w", err)
	}
	fillDistribution(stats.Zones, zones)

	stats.TopCategory = topKey(stats.Categories)
	stats.TopZone = topKey(stats.Zones)

	if err := d.gorm.Model(&Issue{}).
		Order("created_at DESC, id DESC").
		Limit(recent).
		Find(&stats.Recent).Error; err != nil {
		return Stats{}, fmt.Errorf("recent issues: %w", err)
	}
	return stats, nil
}

func fillDistribution(dst map[string]int64, rows []bucket) {
	for _, row := range rows {
		if row.Name == nil {
			continue
		}
		dst[*row.Name] += row.Total
	}
}

// topKey picks the most frequent key; ties go to the lexically smallest key.
func topKey(dist map[string]int64) *string {
	if len(dist) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if dist[k] > dist[best] {
			best = k
		}
	}
	return &best
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(json_extract(classification_json, '$.category'))",
		"CREATE INDEX IF NOT EXISTS idx_issues_urgency ON issues(json_extract(classification_json, '$.urgency'))",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
