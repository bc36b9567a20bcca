package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scraplinehq/scrapline-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestAssignmentsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_assignments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS assignments",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK ((collector_id IS NULL) <> (crew_id IS NULL))",
		"DROP TABLE IF EXISTS assignments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTimelineMigrationIsAppendFriendly(t *testing.T) {
	content := readMigration(t, "*_create_timeline_entries.sql")

	if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS timeline_entries") {
		t.Error("missing timeline_entries table")
	}
	if !strings.Contains(content, "idx_timeline_entries_order_id_created_at") {
		t.Error("missing order_id/created_at index for ordered reads")
	}
	if strings.Contains(content, "ON UPDATE") {
		t.Error("timeline entries must not carry update triggers")
	}
}

func TestOrdersMigrationContainsPriceChecks(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"order_status order_status NOT NULL DEFAULT 'pending'",
		"payment_status payment_status NOT NULL DEFAULT 'unpaid'",
		"CHECK (quoted_price >= 0)",
		"CHECK (actual_price IS NULL OR actual_price >= 0)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
