package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/policygate/policygate/internal/model"
	"github.com/policygate/policygate/internal/rules"
)

func (s *Store) SavePolicy(p model.Policy, rs []model.Rule) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM policies WHERE policy_id = ?`, p.PolicyID).Scan(&exists)
	if err != nil {
		return &rules.StorageError{Op: "check policy", Err: err}
	}
	if exists > 0 {
		return &rules.PolicyExistsError{PolicyID: p.PolicyID}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &rules.StorageError{Op: "begin save policy", Err: err}
	}
	defer tx.Rollback()

	ruleIDs, err := json.Marshal(p.RuleIDs)
	if err != nil {
		return &rules.StorageError{Op: "encode rule ids", Err: err}
	}
	if _, err := tx.Exec(
		`INSERT INTO policies (policy_id, title, rule_ids) VALUES (?, ?, ?)`,
		p.PolicyID, p.Title, string(ruleIDs),
	); err != nil {
		return &rules.StorageError{Op: "insert policy", Err: err}
	}

	for _, r := range rs {
		conditions, err := json.Marshal(r.Conditions)
		if err != nil {
			return &rules.StorageError{Op: "encode conditions", Err: err}
		}
		if _, err := tx.Exec(
			`INSERT INTO rules
			 (policy_id, rule_id, action, conditions, responsible_role,
			  beneficiary, deadline, ambiguity_flag, ambiguity_reason, task_id, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			r.PolicyID, r.RuleID, r.Action, string(conditions), string(r.ResponsibleRole),
			r.Beneficiary, r.Deadline, boolToInt(r.AmbiguityFlag), r.AmbiguityReason, r.TaskID,
		); err != nil {
			return &rules.StorageError{Op: "insert rule", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &rules.StorageError{Op: "commit save policy", Err: err}
	}
	return nil
}

func (s *Store) GetPolicy(policyID string) (model.Policy, error) {
	var p model.Policy
	var ruleIDs string
	err := s.db.QueryRow(
		`SELECT policy_id, title, rule_ids FROM policies WHERE policy_id = ?`, policyID,
	).Scan(&p.PolicyID, &p.Title, &ruleIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Policy{}, &rules.NotFoundError{Entity: "policy", ID: policyID}
	}
	if err != nil {
		return model.Policy{}, &rules.StorageError{Op: "load policy", Err: err}
	}
	if err := json.Unmarshal([]byte(ruleIDs), &p.RuleIDs); err != nil {
		return model.Policy{}, &rules.StorageError{Op: "decode rule ids", Err: err}
	}
	return p, nil
}

func (s *Store) ListPolicies() ([]model.Policy, error) {
	rows, err := s.db.Query(`SELECT policy_id, title, rule_ids FROM policies ORDER BY policy_id`)
	if err != nil {
		return nil, &rules.StorageError{Op: "list policies", Err: err}
	}
	defer rows.Close()

	var out []model.Policy
	for rows.Next() {
		var p model.Policy
		var ruleIDs string
		if err := rows.Scan(&p.PolicyID, &p.Title, &ruleIDs); err != nil {
			return nil, &rules.StorageError{Op: "scan policy", Err: err}
		}
		if err := json.Unmarshal([]byte(ruleIDs), &p.RuleIDs); err != nil {
			return nil, &rules.StorageError{Op: "decode rule ids", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &rules.StorageError{Op: "list policies", Err: err}
	}
	return out, nil
}

const ruleColumns = `policy_id, rule_id, action, conditions, responsible_role,
	beneficiary, deadline, ambiguity_flag, ambiguity_reason, task_id, version`

func (s *Store) GetRule(policyID, ruleID string) (model.Rule, uint64, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM rules WHERE policy_id = ? AND rule_id = ?`, ruleColumns),
		policyID, ruleID,
	)
	r, version, err := scanRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		if _, perr := s.GetPolicy(policyID); perr != nil {
			return model.Rule{}, 0, perr
		}
		return model.Rule{}, 0, &rules.NotFoundError{Entity: "rule", ID: ruleID}
	}
	if err != nil {
		return model.Rule{}, 0, &rules.StorageError{Op: "load rule", Err: err}
	}
	return r, version, nil
}

func (s *Store) ListRules(policyID string) ([]model.Rule, error) {
	if _, err := s.GetPolicy(policyID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM rules WHERE policy_id = ? ORDER BY rule_id`, ruleColumns),
		policyID,
	)
	if err != nil {
		return nil, &rules.StorageError{Op: "list rules", Err: err}
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		r, _, err := scanRule(rows.Scan)
		if err != nil {
			return nil, &rules.StorageError{Op: "scan rule", Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &rules.StorageError{Op: "list rules", Err: err}
	}
	return out, nil
}

func (s *Store) CompareAndSwapRule(r model.Rule, version uint64) error {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return &rules.StorageError{Op: "encode conditions", Err: err}
	}
	res, err := s.db.Exec(
		`UPDATE rules SET
			action = ?, conditions = ?, responsible_role = ?, beneficiary = ?,
			deadline = ?, ambiguity_flag = ?, ambiguity_reason = ?, task_id = ?,
			version = version + 1
		 WHERE policy_id = ? AND rule_id = ? AND version = ?`,
		r.Action, string(conditions), string(r.ResponsibleRole), r.Beneficiary,
		r.Deadline, boolToInt(r.AmbiguityFlag), r.AmbiguityReason, r.TaskID,
		r.PolicyID, r.RuleID, version,
	)
	if err != nil {
		return &rules.StorageError{Op: "swap rule", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &rules.StorageError{Op: "swap rule", Err: err}
	}
	if n == 0 {
		if _, _, err := s.GetRule(r.PolicyID, r.RuleID); err != nil {
			return err
		}
		return &rules.VersionConflictError{PolicyID: r.PolicyID, RuleID: r.RuleID}
	}
	return nil
}

func scanRule(scan func(dest ...any) error) (model.Rule, uint64, error) {
	var r model.Rule
	var conditions, role string
	var flag int
	var version uint64
	err := scan(
		&r.PolicyID, &r.RuleID, &r.Action, &conditions, &role,
		&r.Beneficiary, &r.Deadline, &flag, &r.AmbiguityReason, &r.TaskID, &version,
	)
	if err != nil {
		return model.Rule{}, 0, err
	}
	if err := json.Unmarshal([]byte(conditions), &r.Conditions); err != nil {
		return model.Rule{}, 0, err
	}
	r.ResponsibleRole = model.Role(role)
	r.AmbiguityFlag = flag != 0
	return r, version, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
