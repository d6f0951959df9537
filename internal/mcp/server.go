package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ldi/pbltrack/internal/db"
	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients during initialize.
var Version = "0.1.0"

// NewServer creates a new MCP server.
func NewServer(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer("pbltrack", Version)

	// Projects
	s.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a project. Set require_critique to gate completion on peer critique."),
		mcp.WithString("title", mcp.Description("Project title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Project description")),
		mcp.WithString("start_date", mcp.Description("Start date (YYYY-MM-DD)")),
		mcp.WithBoolean("require_critique", mcp.Description("Whether tasks need a confirmed critique before done")),
	), createProjectHandler(database))

	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects."),
	), listProjectsHandler(database))

	// Tasks
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in a project. New tasks start in todo."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high)")),
		mcp.WithString("team_id", mcp.Description("Owning team")),
		mcp.WithString("start_date", mcp.Description("Start date (YYYY-MM-DD)")),
		mcp.WithString("end_date", mcp.Description("End date (YYYY-MM-DD)")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithNumber("duration_days", mcp.Description("Length in days when no end date is set")),
	), createTaskHandler(database))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List the live tasks of a project with blocked and completable computed now."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Filter by status (todo|in_progress|review|done)")),
	), listTasksHandler(database))

	s.AddTool(mcp.NewTool("claim_task",
		mcp.WithDescription("Assign an unassigned task to a student. Does not change its status."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("assignee_id", mcp.Description("Student claiming the task"), mcp.Required()),
	), claimTaskHandler(database))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Soft-delete a task. Its dependency edges are removed."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(database))

	s.AddTool(mcp.NewTool("evaluate_task",
		mcp.WithDescription("Report whether a task is blocked and whether it may be completed, with the reason."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), evaluateTaskHandler(database))

	s.AddTool(mcp.NewTool("request_transition",
		mcp.WithDescription("Move a task to a new status. Moving to done checks the dependency and critique gates."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Target status (todo|in_progress|review|done)"), mcp.Required()),
	), requestTransitionHandler(database))

	// Dependencies
	s.AddTool(mcp.NewTool("add_dependency",
		mcp.WithDescription("Record that a task depends on another task of the same project. Refused if it would create a cycle."),
		mcp.WithString("task_id", mcp.Description("Dependent task ID"), mcp.Required()),
		mcp.WithString("depends_on_task_id", mcp.Description("Prerequisite task ID"), mcp.Required()),
	), addDependencyHandler(database))

	s.AddTool(mcp.NewTool("remove_dependency",
		mcp.WithDescription("Remove a dependency. Removing a missing edge succeeds."),
		mcp.WithString("task_id", mcp.Description("Dependent task ID"), mcp.Required()),
		mcp.WithString("depends_on_task_id", mcp.Description("Prerequisite task ID"), mcp.Required()),
	), removeDependencyHandler(database))

	// Peer review
	s.AddTool(mcp.NewTool("create_assignment",
		mcp.WithDescription("Ask a reviewer to critique a reviewee's task."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("reviewer_id", mcp.Description("Reviewer"), mcp.Required()),
		mcp.WithString("reviewee_id", mcp.Description("Reviewee"), mcp.Required()),
		mcp.WithString("task_id", mcp.Description("Task under review")),
		mcp.WithString("deadline", mcp.Description("Deadline (YYYY-MM-DD)")),
	), createAssignmentHandler(database))

	s.AddTool(mcp.NewTool("submit_feedback",
		mcp.WithDescription("Submit a warm/cool critique. The checklist must be confirmed. Requesting revision sends a task in review or done back to in_progress."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("author_id", mcp.Description("Reviewer"), mcp.Required()),
		mcp.WithString("assignment_id", mcp.Description("Assignment this critique fulfils")),
		mcp.WithString("warm", mcp.Description("What works")),
		mcp.WithString("cool", mcp.Description("What to improve")),
		mcp.WithBoolean("requires_revision", mcp.Description("Whether the work must be revised")),
		mcp.WithBoolean("checklist_confirmed", mcp.Description("Reviewer confirmed the critique checklist"), mcp.Required()),
	), submitFeedbackHandler(database))

	// Timeline
	s.AddTool(mcp.NewTool("create_milestone",
		mcp.WithDescription("Add a milestone to a project."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Milestone title"), mcp.Required()),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)"), mcp.Required()),
		mcp.WithBoolean("is_hard_deadline", mcp.Description("Whether the date cannot move")),
	), createMilestoneHandler(database))

	s.AddTool(mcp.NewTool("layout_timeline",
		mcp.WithDescription("Lay out a project's tasks and milestones on a day grid."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("today", mcp.Description("Date to mark as today (YYYY-MM-DD, defaults to now)")),
	), layoutTimelineHandler(database))

	// Staging Management
	s.AddTool(mcp.NewTool("stage_task",
		mcp.WithDescription("Propose a task. Changes are staged and must be committed to take effect."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high)")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), stageTaskHandler(database))

	s.AddTool(mcp.NewTool("stage_dependency",
		mcp.WithDescription("Propose a dependency between two tasks by title. Changes are staged and must be committed to take effect."),
		mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		mcp.WithString("task_title", mcp.Description("Title of the dependent task"), mcp.Required()),
		mcp.WithString("depends_on_task_title", mcp.Description("Title of the prerequisite task"), mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), stageDependencyHandler(database))

	s.AddTool(mcp.NewTool("list_staged_changes",
		mcp.WithDescription("List all staged changes for a session. Use this to review a proposed plan before committing."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), listStagedChangesHandler(database))

	s.AddTool(mcp.NewTool("commit_staged_changes",
		mcp.WithDescription("Commit all staged changes for a session at once. A plan that would create a cycle is rejected as a whole."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), commitStagedChangesHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// jsonResult marshals v as the text of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError turns a domain error into a tool error. Gate violations carry the
// failed gates so a client can explain the refusal.
func toolError(err error) *mcp.CallToolResult {
	var gv *engine.GateViolationError
	if errors.As(err, &gv) {
		data, merr := json.Marshal(map[string]any{
			"error":      err.Error(),
			"reasons":    gv.Reasons,
			"blocked_by": gv.BlockedBy,
		})
		if merr == nil {
			return mcp.NewToolResultError(string(data))
		}
	}
	return mcp.NewToolResultError(err.Error())
}

// dateArg reads an optional YYYY-MM-DD argument.
func dateArg(request mcp.CallToolRequest, key string) (*time.Time, error) {
	s := mcp.ParseString(request, key, "")
	if s == "" {
		return nil, nil
	}
	d, err := timeline.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &d, nil
}

func optionalString(request mcp.CallToolRequest, key string) *string {
	if s := mcp.ParseString(request, key, ""); s != "" {
		return &s
	}
	return nil
}

func createProjectHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start, err := dateArg(request, "start_date")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p := &models.Project{
			Title:           mcp.ParseString(request, "title", ""),
			Description:     mcp.ParseString(request, "description", ""),
			StartDate:       start,
			RequireCritique: mcp.ParseBoolean(request, "require_critique", false),
		}
		if p.Title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}
		if err := database.CreateProject(ctx, p); err != nil {
			return toolError(err), nil
		}
		return jsonResult(p)
	}
}

func listProjectsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := database.ListProjects(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{"projects": projects})
	}
}

func createTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t := &models.Task{
			ProjectID:    mcp.ParseString(request, "project_id", ""),
			Title:        mcp.ParseString(request, "title", ""),
			Description:  mcp.ParseString(request, "description", ""),
			Priority:     models.Priority(mcp.ParseString(request, "priority", "")),
			TeamID:       optionalString(request, "team_id"),
			DurationDays: mcp.ParseInt(request, "duration_days", 0),
		}
		var err error
		if t.StartDate, err = dateArg(request, "start_date"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t.EndDate, err = dateArg(request, "end_date"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t.DueDate, err = dateArg(request, "due_date"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := database.CreateTask(ctx, t); err != nil {
			return toolError(err), nil
		}
		return jsonResult(t)
	}
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID := mcp.ParseString(request, "project_id", "")
		status := models.TaskStatus(mcp.ParseString(request, "status", ""))
		if status != "" && !status.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status %q", status)), nil
		}

		tasks, err := database.ListEvaluatedTasks(ctx, projectID)
		if err != nil {
			return toolError(err), nil
		}
		out := make([]*models.Task, 0, len(tasks))
		for _, t := range tasks {
			if status == "" || t.Status == status {
				out = append(out, t)
			}
		}
		return jsonResult(map[string]any{"tasks": out})
	}
}

func claimTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := database.ClaimTask(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "assignee_id", ""))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(t)
	}
}

func deleteTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		if err := database.DeleteTask(ctx, taskID); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted", taskID)), nil
	}
}

func evaluateTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		eval, err := database.EvaluateTask(ctx, mcp.ParseString(request, "task_id", ""))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(eval)
	}
}

func requestTransitionHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tr, err := database.ApplyTransition(ctx,
			mcp.ParseString(request, "task_id", ""),
			models.TaskStatus(mcp.ParseString(request, "status", "")))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(tr)
	}
}

func addDependencyHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseString(request, "task_id", "")
		dependsOnID := mcp.ParseString(request, "depends_on_task_id", "")
		if err := database.CreateDependency(ctx, taskID, dependsOnID); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %s now depends on %s", taskID, dependsOnID)), nil
	}
}

func removeDependencyHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		err := database.DeleteDependency(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "depends_on_task_id", ""))
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText("Dependency removed"), nil
	}
}

func createAssignmentHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deadline, err := dateArg(request, "deadline")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		a := &models.PeerReviewAssignment{
			ProjectID:  mcp.ParseString(request, "project_id", ""),
			ReviewerID: mcp.ParseString(request, "reviewer_id", ""),
			RevieweeID: mcp.ParseString(request, "reviewee_id", ""),
			TaskID:     optionalString(request, "task_id"),
			Deadline:   deadline,
		}
		if err := database.CreateAssignment(ctx, a); err != nil {
			return toolError(err), nil
		}
		return jsonResult(a)
	}
}

func submitFeedbackHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry := &models.FeedbackEntry{
			TaskID:             mcp.ParseString(request, "task_id", ""),
			AuthorID:           mcp.ParseString(request, "author_id", ""),
			AssignmentID:       optionalString(request, "assignment_id"),
			Warm:               mcp.ParseString(request, "warm", ""),
			Cool:               mcp.ParseString(request, "cool", ""),
			RequiresRevision:   mcp.ParseBoolean(request, "requires_revision", false),
			ChecklistConfirmed: mcp.ParseBoolean(request, "checklist_confirmed", false),
		}
		res, err := database.SubmitFeedback(ctx, entry)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	}
}

func createMilestoneHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		due, err := dateArg(request, "due_date")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if due == nil {
			return mcp.NewToolResultError("due_date is required"), nil
		}
		m := &models.Milestone{
			ProjectID:      optionalString(request, "project_id"),
			Title:          mcp.ParseString(request, "title", ""),
			DueDate:        *due,
			IsHardDeadline: mcp.ParseBoolean(request, "is_hard_deadline", false),
		}
		if err := database.CreateMilestone(ctx, m); err != nil {
			return toolError(err), nil
		}
		return jsonResult(m)
	}
}

func layoutTimelineHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		today := time.Now()
		d, err := dateArg(request, "today")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if d != nil {
			today = *d
		}
		grid, err := database.Timeline(ctx, mcp.ParseString(request, "project_id", ""), today)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(grid)
	}
}

func stageTaskHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		sessionID := mcp.ParseString(request, "session_id", "default")

		database.Staging.AddTask(sessionID, &models.Task{
			ProjectID:   mcp.ParseString(request, "project_id", ""),
			Title:       title,
			Description: mcp.ParseString(request, "description", ""),
			Priority:    models.Priority(mcp.ParseString(request, "priority", "")),
		})
		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' staged for session '%s'. Propose another or call 'commit_staged_changes' to apply.", title, sessionID)), nil
	}
}

func stageDependencyHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskTitle := mcp.ParseString(request, "task_title", "")
		dependsOnTitle := mcp.ParseString(request, "depends_on_task_title", "")
		sessionID := mcp.ParseString(request, "session_id", "default")

		database.Staging.AddDependency(sessionID, &models.Dependency{
			ProjectID:          mcp.ParseString(request, "project_id", ""),
			TaskTitle:          taskTitle,
			DependsOnTaskTitle: dependsOnTitle,
		})
		return mcp.NewToolResultText(fmt.Sprintf("Dependency '%s' -> '%s' staged for session '%s'. Call 'commit_staged_changes' to apply.", taskTitle, dependsOnTitle, sessionID)), nil
	}
}

func listStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		return jsonResult(database.Staging.Peek(sessionID))
	}
}

func commitStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		if err := database.CommitBatch(ctx, sessionID); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Staged changes for session '%s' committed", sessionID)), nil
	}
}
