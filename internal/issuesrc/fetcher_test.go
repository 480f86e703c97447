package issuesrc

import "testing"

func TestParseIssue(t *testing.T) {
	data := []byte(`{"number": 42, "title": "reject empty payload with a 400 response", "body": "Empty POST bodies currently 500."}`)

	issue, err := ParseIssue(data, "acme/api", "main")
	if err != nil {
		t.Fatal(err)
	}
	if issue.ID != "42" {
		t.Errorf("ID = %q, want 42", issue.ID)
	}
	if issue.Repo != "acme/api" {
		t.Errorf("Repo = %q", issue.Repo)
	}
	if issue.BaseRef != "main" {
		t.Errorf("BaseRef = %q", issue.BaseRef)
	}
}

func TestParseIssue_MissingTitle(t *testing.T) {
	data := []byte(`{"number": 9, "title": "", "body": "x"}`)
	if _, err := ParseIssue(data, "acme/api", "main"); err == nil {
		t.Error("expected validation error for empty title")
	}
}

func TestParseIssue_BadJSON(t *testing.T) {
	if _, err := ParseIssue([]byte("not json"), "acme/api", "main"); err == nil {
		t.Error("expected parse error")
	}
}
