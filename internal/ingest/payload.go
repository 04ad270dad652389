// Package ingest defines the extraction payload, the handoff artifact
// between the upstream rule extractor and the pipeline. A payload carries
// one policy with the rules extracted from it, ambiguity flags included.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/policygate/policygate/internal/model"
)

// Payload is one policy's extraction result as submitted for ingestion.
type Payload struct {
	PolicyID    string        `json:"policy_id"`
	PolicyTitle string        `json:"policy_title,omitempty"`
	Rules       []RulePayload `json:"rules"`
}

// RulePayload is one extracted rule inside a Payload. ResponsibleRole stays
// a plain string here; it is parsed during validation so a bad value is
// reported instead of silently dropped.
type RulePayload struct {
	RuleID          string   `json:"rule_id"`
	Action          string   `json:"action"`
	Conditions      []string `json:"conditions,omitempty"`
	ResponsibleRole string   `json:"responsible_role,omitempty"`
	Beneficiary     string   `json:"beneficiary,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	AmbiguityFlag   bool     `json:"ambiguity_flag"`
	AmbiguityReason string   `json:"ambiguity_reason,omitempty"`
}

// ToModel converts a validated payload into its policy and rules.
func (p *Payload) ToModel() (model.Policy, []model.Rule) {
	policy := model.Policy{
		PolicyID: p.PolicyID,
		Title:    p.PolicyTitle,
		RuleIDs:  make([]string, 0, len(p.Rules)),
	}
	rs := make([]model.Rule, 0, len(p.Rules))
	for _, rp := range p.Rules {
		policy.RuleIDs = append(policy.RuleIDs, rp.RuleID)
		role, _ := model.ParseRole(rp.ResponsibleRole)
		rs = append(rs, model.Rule{
			PolicyID:        p.PolicyID,
			RuleID:          rp.RuleID,
			Action:          rp.Action,
			Conditions:      append([]string(nil), rp.Conditions...),
			ResponsibleRole: role,
			Beneficiary:     rp.Beneficiary,
			Deadline:        rp.Deadline,
			AmbiguityFlag:   rp.AmbiguityFlag,
			AmbiguityReason: rp.AmbiguityReason,
		})
	}
	return policy, rs
}

// ReadPayload loads a payload file. Unknown fields are rejected so a payload
// written against a different schema fails loudly.
func ReadPayload(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse payload %s: %w", path, err)
	}
	return &p, nil
}

// WriteJSON atomically writes v to path via a temp file and rename.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename to final: %w", err)
	}
	return nil
}
