package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/lithammer/shortuuid/v4"

	"github.com/qcheck/taskbot/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.CreateTaskRequest) (int64, error) {
	normalized := store.NormalizeName(create.MainController)
	var exists bool
	if err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM directory_entry WHERE normalized_name = $1 AND row_status = 'NORMAL')`,
		normalized,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check owner group: %w", err)
	}
	if !exists {
		return 0, store.ErrOwnerGroupNotFound
	}

	fields := []string{
		"uid", "task_name", "main_controller", "controllers", "assignees",
		"due_date", "local_due_date", "location", "due_time",
		"soft_due_date", "final_due_date", "items",
		"is_recurring", "freq_type", "freq_recurrence", "freq_interval", "business_day_behavior",
		"activate", "is_reminder", "reminder_date", "add_to_priority_list",
		"confidential", "creator_id",
	}
	args := []any{
		shortuuid.New(), create.TaskName, create.MainController, create.Controllers, create.Assignees,
		create.DueDate, create.LocalDueDate, create.Location, create.DueTime,
		create.SoftDueDate, create.FinalDueDate, create.Items,
		create.IsRecurring, create.FreqType, create.FreqRecurrence, create.FreqInterval, create.BusinessDayBehavior,
		create.Activate, create.IsReminder, create.ReminderDate, create.AddToPriorityList,
		create.Confidential, create.CreatorID,
	}

	stmt := `INSERT INTO task (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	var id int64
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&id); err != nil {
		var pqErr *pq.Error
		// 23505 is unique_violation.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, store.ErrDuplicateTaskName
		}
		return 0, fmt.Errorf("failed to create task: %w", err)
	}
	return id, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.TaskName != nil {
		where, args = append(where, "task_name = "+placeholder(len(args)+1)), append(args, *find.TaskName)
	}
	if find.MainController != nil {
		where, args = append(where, "main_controller = "+placeholder(len(args)+1)), append(args, *find.MainController)
	}

	query := `SELECT id, uid, task_name, main_controller, assignees, local_due_date, is_recurring, created_ts FROM task WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Task, 0)
	for rows.Next() {
		task := &store.Task{}
		if err := rows.Scan(&task.ID, &task.UID, &task.TaskName, &task.MainController, &task.Assignees, &task.LocalDueDate, &task.IsRecurring, &task.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		list = append(list, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return list, nil
}
