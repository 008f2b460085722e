package domain

import "encoding/json"

// Update is a partial issue patch. Nil fields are absent and leave the current
// value untouched; ID is mandatory.
type Update struct {
	ID          string      `json:"id"`
	Key         *string     `json:"key,omitempty"`
	Number      *int        `json:"number,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Body        *string     `json:"body,omitempty"`
	State       *string     `json:"state,omitempty"`
	PullRequest *bool       `json:"pull_request,omitempty"`
	Repository  *Repository `json:"repository,omitempty"`
	Column      *string     `json:"column,omitempty"`
	Order       *float64    `json:"order,omitempty"`
	Labels      *[]Label    `json:"labels,omitempty"`
	UpdatedAt   *string     `json:"updated_at,omitempty"`

	// Extra holds passthrough fields merged key by key into Issue.Extra.
	Extra map[string]json.RawMessage `json:"-"`
}

// Apply merges the patch over existing field by field and returns the result.
// The existing value is not modified.
func (u Update) Apply(existing Issue) Issue {
	out := existing.Clone()
	out.ID = u.ID
	if u.Key != nil {
		out.Key = *u.Key
	}
	if u.Number != nil {
		out.Number = *u.Number
	}
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Body != nil {
		out.Body = *u.Body
	}
	if u.State != nil {
		out.State = *u.State
	}
	if u.PullRequest != nil {
		out.PullRequest = *u.PullRequest
	}
	if u.Repository != nil {
		out.Repository = *u.Repository
	}
	if u.Column != nil {
		out.Column = *u.Column
	}
	if u.Order != nil {
		out.Order = *u.Order
	}
	if u.Labels != nil {
		out.Labels = append([]Label{}, (*u.Labels)...)
	}
	if u.UpdatedAt != nil {
		out.UpdatedAt = *u.UpdatedAt
	}
	if len(u.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		}
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// UpdateFromIssue builds a patch that sets every modelled field of issue.
func UpdateFromIssue(issue Issue) Update {
	labels := append([]Label{}, issue.Labels...)
	repo := issue.Repository
	u := Update{
		ID:          issue.ID,
		Key:         &issue.Key,
		Number:      &issue.Number,
		Title:       &issue.Title,
		Body:        &issue.Body,
		State:       &issue.State,
		PullRequest: &issue.PullRequest,
		Repository:  &repo,
		Labels:      &labels,
		Extra:       cloneRawMap(issue.Extra),
	}
	if issue.UpdatedAt != "" {
		u.UpdatedAt = &issue.UpdatedAt
	}
	return u
}

var updateFields = map[string]struct{}{
	"id": {}, "key": {}, "number": {}, "title": {}, "body": {}, "state": {},
	"pull_request": {}, "repository": {}, "column": {}, "order": {},
	"labels": {}, "updated_at": {},
}

// MarshalJSON flattens Extra into the top-level object.
func (u Update) MarshalJSON() ([]byte, error) {
	type plain Update
	return marshalWithExtra(plain(u), u.Extra, updateFields)
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (u *Update) UnmarshalJSON(data []byte) error {
	type plain Update
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	extra, err := extractExtra(data, updateFields)
	if err != nil {
		return err
	}
	*u = Update(decoded)
	u.Extra = extra
	return nil
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Float returns a pointer to f, for building patches.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to n, for building patches.
func Int(n int) *int { return &n }

// Labels returns a pointer to a label slice, for building patches.
func Labels(labels ...Label) *[]Label {
	out := append([]Label{}, labels...)
	return &out
}
