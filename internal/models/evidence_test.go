package models

import "testing"

func TestExternalKey(t *testing.T) {
	ev := &Evidence{
		ID:         "ev-1",
		Source:     EvidenceSourceGitHub,
		ExternalID: "acme/api#42",
		Role:       EvidenceRoleAuthor,
	}
	if ev.NaturalKey() != "github|acme/api#42|author" {
		t.Errorf("unexpected natural key %q", ev.NaturalKey())
	}
	if ev.NaturalKey() != ExternalKey(EvidenceSourceGitHub, "acme/api#42", EvidenceRoleAuthor) {
		t.Error("NaturalKey and ExternalKey disagree")
	}

	// Role separates records for the same item
	reviewer := ExternalKey(EvidenceSourceGitHub, "acme/api#42", EvidenceRoleReviewer)
	if ev.NaturalKey() == reviewer {
		t.Error("role must be part of the identity")
	}
}

func TestEvidence_Validate(t *testing.T) {
	valid := &Evidence{
		ID:         "ev-1",
		Source:     EvidenceSourceJira,
		ExternalID: "PROJ-7",
		Role:       EvidenceRoleAssignee,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid evidence rejected: %v", err)
	}

	missing := []Evidence{
		{Source: EvidenceSourceJira, ExternalID: "PROJ-7", Role: EvidenceRoleAssignee},
		{ID: "ev-1", ExternalID: "PROJ-7", Role: EvidenceRoleAssignee},
		{ID: "ev-1", Source: EvidenceSourceJira, Role: EvidenceRoleAssignee},
		{ID: "ev-1", Source: EvidenceSourceJira, ExternalID: "PROJ-7"},
	}
	for i := range missing {
		if err := missing[i].Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestMatchKey(t *testing.T) {
	if MatchKey("ev-1", 7) != "ev-1:7" {
		t.Errorf("unexpected match key %q", MatchKey("ev-1", 7))
	}
}
