package storage

import "github.com/policygate/policygate/internal/ingest"

func payloadFixture() *ingest.Payload {
	return &ingest.Payload{
		PolicyID:    "POL-1",
		PolicyTitle: "Data retention",
		Rules: []ingest.RulePayload{
			{
				RuleID:          "R-1",
				Action:          "archive records",
				ResponsibleRole: "Clerk",
				Deadline:        "2026-12-31",
			},
			{
				RuleID:          "R-2",
				Action:          "purge drafts",
				AmbiguityFlag:   true,
				AmbiguityReason: "no responsible role named",
			},
		},
	}
}
