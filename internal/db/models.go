package db

import "time"

// InterruptionData maps power_interruption_data.
type InterruptionData struct {
	ID                         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	IsPowerInterruptionRelated bool      `gorm:"column:is_power_interruption_related;type:boolean;not null;default:true"`
	IsUpdate                   bool      `gorm:"column:is_update;type:boolean;not null;default:false"`
	CreatedAt                  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	Reason                     *string   `gorm:"column:reason;type:text"`
	Date                       time.Time `gorm:"column:date;type:date;not null;index:ix_power_interruption_data_date"`
	StartTime                  time.Time `gorm:"column:start_time;type:timestamptz;not null"`
	EndTime                    time.Time `gorm:"column:end_time;type:timestamptz;not null"`
	AffectedLine               *string   `gorm:"column:affected_line;type:text"`
	NoticeID                   *int64    `gorm:"column:notice_id;type:bigint;index"`
}

func (InterruptionData) TableName() string { return "power_interruption_data" }

// Notice maps power_interruption_notices.
type Notice struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ControlNo  string    `gorm:"column:control_no;type:text;not null;uniqueIndex:ux_power_interruption_notices_control_no"`
	DateIssued time.Time `gorm:"column:date_issued;type:date;not null"`
}

func (Notice) TableName() string { return "power_interruption_notices" }

// AffectedArea maps affected_areas.
type AffectedArea struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:text;not null;uniqueIndex:ux_affected_areas_name"`
}

func (AffectedArea) TableName() string { return "affected_areas" }

// Barangay maps barangays; a name is unique only within its area.
type Barangay struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:name;type:text;not null;uniqueIndex:ux_barangays_name_area,priority:1"`
	AreaID int64  `gorm:"column:area_id;type:bigint;not null;uniqueIndex:ux_barangays_name_area,priority:2"`
}

func (Barangay) TableName() string { return "barangays" }

// AffectedCustomer maps affected_customers.
type AffectedCustomer struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:text;not null;uniqueIndex:ux_affected_customers_name"`
}

func (AffectedCustomer) TableName() string { return "affected_customers" }

// SpecificActivity maps specific_activities.
type SpecificActivity struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:text;not null;uniqueIndex:ux_specific_activities_name"`
}

func (SpecificActivity) TableName() string { return "specific_activities" }

// Personnel maps personnel.
type Personnel struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string `gorm:"column:name;type:text;not null;uniqueIndex:ux_personnel_name_position,priority:1"`
	Position string `gorm:"column:position;type:text;not null;uniqueIndex:ux_personnel_name_position,priority:2"`
}

func (Personnel) TableName() string { return "personnel" }

// DataArea maps data_areas.
type DataArea struct {
	DataID int64 `gorm:"column:data_id;type:bigint;primaryKey"`
	AreaID int64 `gorm:"column:area_id;type:bigint;primaryKey"`
}

func (DataArea) TableName() string { return "data_areas" }

// DataCustomer maps data_customers.
type DataCustomer struct {
	DataID     int64 `gorm:"column:data_id;type:bigint;primaryKey"`
	CustomerID int64 `gorm:"column:customer_id;type:bigint;primaryKey"`
}

func (DataCustomer) TableName() string { return "data_customers" }

// DataActivity maps data_activities.
type DataActivity struct {
	DataID     int64 `gorm:"column:data_id;type:bigint;primaryKey"`
	ActivityID int64 `gorm:"column:activity_id;type:bigint;primaryKey"`
}

func (DataActivity) TableName() string { return "data_activities" }

// NoticePersonnel maps notice_personnel.
type NoticePersonnel struct {
	NoticeID    int64 `gorm:"column:notice_id;type:bigint;primaryKey"`
	PersonnelID int64 `gorm:"column:personnel_id;type:bigint;primaryKey"`
}

func (NoticePersonnel) TableName() string { return "notice_personnel" }

// NoticeCustomer maps notice_customers.
type NoticeCustomer struct {
	NoticeID   int64 `gorm:"column:notice_id;type:bigint;primaryKey"`
	CustomerID int64 `gorm:"column:customer_id;type:bigint;primaryKey"`
}

func (NoticeCustomer) TableName() string { return "notice_customers" }

// NoticeActivity maps notice_activities.
type NoticeActivity struct {
	NoticeID   int64 `gorm:"column:notice_id;type:bigint;primaryKey"`
	ActivityID int64 `gorm:"column:activity_id;type:bigint;primaryKey"`
}

func (NoticeActivity) TableName() string { return "notice_activities" }

func autoMigrateModels() []any {
	return []any{
		&Notice{},
		&InterruptionData{},
		&AffectedArea{},
		&Barangay{},
		&AffectedCustomer{},
		&SpecificActivity{},
		&Personnel{},
		&DataArea{},
		&DataCustomer{},
		&DataActivity{},
		&NoticePersonnel{},
		&NoticeCustomer{},
		&NoticeActivity{},
	}
}
