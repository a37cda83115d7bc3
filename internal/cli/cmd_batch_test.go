package cli_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/tk-desk/internal/cli"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

func Test_Batch_Updates_Selected_Tickets_When_All_Succeed(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout := c.MustRun("batch", "set_priority", "--ids", "1,2", "--priority", "critical")

	cli.AssertContains(t, stdout, "[1/2] processed INC-00001")
	cli.AssertContains(t, stdout, "[2/2] processed INC-00002")
	cli.AssertContains(t, stdout, "success: batch set_priority succeeded for 2 tickets")

	stdout = c.MustRun("ls")
	lines := strings.Split(stdout, "\n")

	cli.AssertContains(t, lines[0], "critical")
	cli.AssertContains(t, lines[1], "critical")
	cli.AssertNotContains(t, lines[2], "critical")
}

func Test_Batch_Assign_Sets_Assignee_Name_When_Agent_Known(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("batch", "assign", "--ids", "2", "--assignee", "2", "--comment", "taking this")

	var page ticket.Page

	err := json.Unmarshal([]byte(c.MustRun("ls", "--json")), &page)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := page.Tickets[1]
	if got.ID != 2 || got.AssigneeName != "Sam Rivera" {
		t.Fatalf("ticket = %d assigned to %q, want 2 assigned to Sam Rivera", got.ID, got.AssigneeName)
	}
}

func Test_Batch_Reports_Partial_Failure_When_Some_Tickets_Fail(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".tk-desk.json", `{"batch_delay": "1ms", "mock_tickets": 12, "page_size": 5, "fail_ids": [2], "log_level": "error"}`)

	stdout, stderr, exitCode := c.Run("batch", "delete", "--ids", "1,2,3")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "warning: batch delete finished: 2 succeeded, 1 failed")
	cli.AssertContains(t, stdout, "  - INC-00002:")
	cli.AssertContains(t, stderr, "1 of 3 tickets failed")

	stdout = c.MustRun("ls")
	cli.AssertContains(t, stdout, "page 1/2, 10 tickets")
	cli.AssertContains(t, stdout, "INC-00002")
	cli.AssertNotContains(t, stdout, "INC-00001")
	cli.AssertNotContains(t, stdout, "INC-00003")
}

func Test_Batch_Fails_Before_Fetching_When_Input_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("batch", "set_priority", "--priority", "high")
	cli.AssertContains(t, stderr, "no tickets selected")

	stderr = c.MustFail("batch", "archive", "--all")
	cli.AssertContains(t, stderr, "unknown batch operation")

	stderr = c.MustFail("batch", "assign", "--ids", "1")
	cli.AssertContains(t, stderr, "needs an assignee")

	stderr = c.MustFail("batch", "notify", "--ids", "1", "--message", "hi")
	cli.AssertContains(t, stderr, "needs at least one recipient")

	stderr = c.MustFail("batch")
	cli.AssertContains(t, stderr, "missing argument")
}

func Test_Batch_Warns_When_Ticket_Not_On_Current_Page(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, exitCode := c.Run("batch", "add_tags", "--ids", "1,9", "--tags", "vpn")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stderr, "ticket 9 is not on the current page")
	cli.AssertContains(t, stdout, "success: batch add_tags succeeded for 1 tickets")

	var page ticket.Page

	err := json.Unmarshal([]byte(c.MustRun("ls", "--json")), &page)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := page.Tickets[0].Tags; len(got) != 3 || got[2] != "vpn" {
		t.Fatalf("tags = %v, want tag1,tag2,vpn", got)
	}
}

func Test_Batch_Fails_When_No_Selected_Ticket_Is_Loaded(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	_, stderr, exitCode := c.Run("batch", "update_status", "--ids", "11", "--status", "closed")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stderr, "ticket 11 is not on the current page")
	cli.AssertContains(t, stderr, "error:")
}

func Test_Export_Writes_File_When_Tickets_Selected(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout := c.MustRun("export", "--all", "--format", "json")
	cli.AssertContains(t, stdout, "success: exported 5 tickets to ")

	matches, err := filepath.Glob(filepath.Join(c.Dir, "tickets_batch_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("export files = %v (err %v), want one", matches, err)
	}

	var exported []ticket.Ticket

	err = json.Unmarshal([]byte(c.ReadFile(filepath.Base(matches[0]))), &exported)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}

	if got, want := len(exported), 5; got != want {
		t.Fatalf("exported=%d, want=%d", got, want)
	}

	c.MustRun("export", "--ids", "2,3")

	csvFiles, _ := filepath.Glob(filepath.Join(c.Dir, "tickets_batch_*.csv"))
	if len(csvFiles) != 1 {
		t.Fatalf("csv files = %v, want one", csvFiles)
	}

	content := c.ReadFile(filepath.Base(csvFiles[0]))
	cli.AssertContains(t, content, "INC-00002")
	cli.AssertContains(t, content, "INC-00003")
	cli.AssertNotContains(t, content, "INC-00001")

	stderr := c.MustFail("export", "--all", "--format", "xml")
	cli.AssertContains(t, stderr, "needs format csv or json")
}

func Test_Seed_Replaces_Data_Set_When_Count_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("ls", "--page", "2")

	stdout := c.MustRun("seed", "--count", "3")
	cli.AssertContains(t, stdout, "seeded 3 tickets")

	stdout = c.MustRun("ls")
	cli.AssertContains(t, stdout, "page 1/1, 3 tickets")

	stdout = c.MustRun("seed", "--dump")
	cli.AssertContains(t, stdout, "ticket_number: INC-00001")
	cli.AssertContains(t, stdout, "ticket_number: INC-00003")
	cli.AssertNotContains(t, stdout, "INC-00004")

	stderr := c.MustFail("seed", "--count", "-1")
	cli.AssertContains(t, stderr, "count cannot be negative")
}

func Test_Seed_Loads_Fixture_When_From_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("fixture.yaml", `
tickets:
  - id: 7
    title: Laptop will not boot
    status: new
    priority: high
    requester_id: 2
    created_at: 2026-02-01T08:00:00Z
    updated_at: 2026-02-01T08:00:00Z
  - id: 8
    title: Shared drive full
    status: open
    priority: low
    requester_id: 2
    created_at: 2026-02-02T08:00:00Z
    updated_at: 2026-02-02T08:00:00Z
`)

	stdout := c.MustRun("seed", "--from", "fixture.yaml")
	cli.AssertContains(t, stdout, "seeded 2 tickets")

	stdout = c.MustRun("ls")
	lines := strings.Split(stdout, "\n")

	cli.AssertContains(t, lines[0], "Shared drive full")
	cli.AssertContains(t, lines[1], "Laptop will not boot")

	c.WriteFile("bad.yaml", "tickets:\n  - id: 1\n    status: sleeping\n")

	stderr := c.MustFail("seed", "--from", "bad.yaml")
	cli.AssertContains(t, stderr, "invalid fixture")
}
