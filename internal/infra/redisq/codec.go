package redisq

import (
	"reviewq/internal/domain"
	"strconv"
	"time"
)

func encodeTask(t domain.Task) map[string]any {
	return map[string]any{
		"image_url":   t.ImageURL,
		"description": t.Description,
		"assigned_to": principalField(t.AssignedTo),
		"assigned_at": timeField(t.AssignedAt),
		"reviewed_by": principalField(t.ReviewedBy),
		"reviewed_at": timeField(t.ReviewedAt),
		"completed":   strconv.FormatBool(t.Completed),
	}
}

func decodeTask(id uint64, h map[string]string) (domain.Task, error) {
	t := domain.Task{
		ID:          id,
		ImageURL:    h["image_url"],
		Description: h["description"],
		AssignedTo:  parsePrincipal(h["assigned_to"]),
		ReviewedBy:  parsePrincipal(h["reviewed_by"]),
	}
	var err error
	if t.AssignedAt, err = parseTime(h["assigned_at"]); err != nil {
		return t, err
	}
	if t.ReviewedAt, err = parseTime(h["reviewed_at"]); err != nil {
		return t, err
	}
	if t.Completed, err = strconv.ParseBool(h["completed"]); err != nil {
		return t, err
	}
	return t, nil
}

func encodeReview(r domain.ReviewTask) map[string]any {
	return map[string]any{
		"task_id":        strconv.FormatUint(r.TaskID, 10),
		"reviewed_by":    principalField(r.ReviewedBy),
		"reviewed_at":    timeField(r.ReviewedAt),
		"accepted":       strconv.FormatBool(r.Accepted),
		"status":         string(r.Status),
		"adjudicated_at": timeField(r.AdjudicatedAt),
	}
}

func decodeReview(id uint64, h map[string]string) (domain.ReviewTask, error) {
	r := domain.ReviewTask{
		ID:         id,
		ReviewedBy: parsePrincipal(h["reviewed_by"]),
		Status:     domain.ReviewStatus(h["status"]),
	}
	var err error
	if r.TaskID, err = strconv.ParseUint(h["task_id"], 10, 64); err != nil {
		return r, err
	}
	if r.ReviewedAt, err = parseTime(h["reviewed_at"]); err != nil {
		return r, err
	}
	if r.AdjudicatedAt, err = parseTime(h["adjudicated_at"]); err != nil {
		return r, err
	}
	if r.Accepted, err = strconv.ParseBool(h["accepted"]); err != nil {
		return r, err
	}
	return r, nil
}

func principalField(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func parsePrincipal(s string) *domain.Principal {
	if s == "" {
		return nil
	}
	return domain.PrincipalPtr(domain.Principal(s))
}

func timeField(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return domain.TimePtr(time.Unix(0, n).UTC()), nil
}
