package store

import (
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// PoolsColumns holds the columns for the "pools" table.
	PoolsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "org_id", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Default: ""},
		{Name: "item_count", Type: field.TypeInt, Default: 0},
		{Name: "completed_sessions", Type: field.TypeInt, Default: 0},
		{Name: "active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// PoolsTable holds the schema information for the "pools" table.
	PoolsTable = &schema.Table{
		Name:       "pools",
		Columns:    PoolsColumns,
		PrimaryKey: []*schema.Column{PoolsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "pool_org_id", Unique: false, Columns: []*schema.Column{PoolsColumns[2]}},
		},
	}

	// ItemsColumns holds the columns for the "items" table.
	ItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "pool_id", Type: field.TypeString},
		{Name: "content", Type: field.TypeString},
		{Name: "type", Type: field.TypeString},
		{Name: "correct_answer", Type: field.TypeJSON},
		{Name: "difficulty", Type: field.TypeFloat64},
		{Name: "discrimination", Type: field.TypeFloat64},
		{Name: "guessing", Type: field.TypeFloat64},
		{Name: "level", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString, Default: ""},
		{Name: "subtopic", Type: field.TypeString, Default: ""},
		{Name: "usage_count", Type: field.TypeInt, Default: 0},
		{Name: "correct_count", Type: field.TypeInt, Default: 0},
		{Name: "avg_response_time", Type: field.TypeFloat64, Default: 0},
		{Name: "exposure_rate", Type: field.TypeFloat64, Default: 0},
		{Name: "information_value", Type: field.TypeFloat64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ItemsTable holds the schema information for the "items" table.
	ItemsTable = &schema.Table{
		Name:       "items",
		Columns:    ItemsColumns,
		PrimaryKey: []*schema.Column{ItemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "items_pools_items",
				Columns:    []*schema.Column{ItemsColumns[1]},
				RefColumns: []*schema.Column{PoolsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "item_pool_id", Unique: false, Columns: []*schema.Column{ItemsColumns[1]}},
			{Name: "item_pool_id_topic", Unique: false, Columns: []*schema.Column{ItemsColumns[1], ItemsColumns[9]}},
		},
	}

	// SessionsColumns holds the columns for the "sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "taker_id", Type: field.TypeString},
		{Name: "pool_id", Type: field.TypeString},
		{Name: "test_id", Type: field.TypeString, Default: ""},
		{Name: "config", Type: field.TypeJSON},
		{Name: "ability", Type: field.TypeFloat64},
		{Name: "standard_error", Type: field.TypeFloat64},
		{Name: "answered", Type: field.TypeInt, Default: 0},
		{Name: "asked_items", Type: field.TypeJSON},
		{Name: "topic_coverage", Type: field.TypeJSON},
		{Name: "history", Type: field.TypeJSON},
		{Name: "status", Type: field.TypeString},
		{Name: "stop_reason", Type: field.TypeString, Default: ""},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "ended_at", Type: field.TypeTime, Nullable: true},
		{Name: "final_ability", Type: field.TypeFloat64, Nullable: true},
		{Name: "final_se", Type: field.TypeFloat64, Nullable: true},
		{Name: "ci_lower", Type: field.TypeFloat64, Nullable: true},
		{Name: "ci_upper", Type: field.TypeFloat64, Nullable: true},
		{Name: "version", Type: field.TypeInt, Default: 0},
	}
	// SessionsTable holds the schema information for the "sessions" table.
	SessionsTable = &schema.Table{
		Name:       "sessions",
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sessions_pools_sessions",
				Columns:    []*schema.Column{SessionsColumns[2]},
				RefColumns: []*schema.Column{PoolsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "session_pool_id_status", Unique: false, Columns: []*schema.Column{SessionsColumns[2], SessionsColumns[11]}},
			{
				// At most one in-progress session per (pool, taker).
				Name:       "session_pool_id_taker_id_active",
				Unique:     true,
				Columns:    []*schema.Column{SessionsColumns[2], SessionsColumns[1]},
				Annotation: &entsql.IndexAnnotation{Where: "status = 'in_progress'"},
			},
		},
	}

	// ResponsesColumns holds the columns for the "responses" table.
	ResponsesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString},
		{Name: "item_id", Type: field.TypeString},
		{Name: "question_number", Type: field.TypeInt},
		{Name: "answer", Type: field.TypeJSON},
		{Name: "correct", Type: field.TypeBool},
		{Name: "response_time", Type: field.TypeFloat64},
		{Name: "ability_before", Type: field.TypeFloat64},
		{Name: "ability_after", Type: field.TypeFloat64},
		{Name: "se_after", Type: field.TypeFloat64},
		{Name: "difficulty", Type: field.TypeFloat64},
		{Name: "discrimination", Type: field.TypeFloat64},
		{Name: "guessing", Type: field.TypeFloat64},
		{Name: "topic", Type: field.TypeString, Default: ""},
		{Name: "answered_at", Type: field.TypeTime},
	}
	// ResponsesTable holds the schema information for the "responses" table.
	ResponsesTable = &schema.Table{
		Name:       "responses",
		Columns:    ResponsesColumns,
		PrimaryKey: []*schema.Column{ResponsesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "responses_sessions_responses",
				Columns:    []*schema.Column{ResponsesColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "response_session_id_question_number", Unique: true, Columns: []*schema.Column{ResponsesColumns[1], ResponsesColumns[3]}},
			{Name: "response_session_id_item_id", Unique: true, Columns: []*schema.Column{ResponsesColumns[1], ResponsesColumns[2]}},
			{Name: "response_item_id", Unique: false, Columns: []*schema.Column{ResponsesColumns[2]}},
		},
	}

	// ReportsColumns holds the columns for the "reports" table.
	ReportsColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString},
		{Name: "final_ability", Type: field.TypeFloat64},
		{Name: "percentile", Type: field.TypeFloat64},
		{Name: "level", Type: field.TypeString},
		{Name: "data", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ReportsTable holds the schema information for the "reports" table.
	ReportsTable = &schema.Table{
		Name:       "reports",
		Columns:    ReportsColumns,
		PrimaryKey: []*schema.Column{ReportsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "reports_sessions_report",
				Columns:    []*schema.Column{ReportsColumns[0]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		PoolsTable,
		ItemsTable,
		SessionsTable,
		ResponsesTable,
		ReportsTable,
	}
)

func init() {
	ItemsTable.ForeignKeys[0].RefTable = PoolsTable
	SessionsTable.ForeignKeys[0].RefTable = PoolsTable
	ResponsesTable.ForeignKeys[0].RefTable = SessionsTable
	ReportsTable.ForeignKeys[0].RefTable = SessionsTable
}
