package models

// Employee is one row of the employee list as the backend renders it:
// gender and status carry display labels and the birthday is dd.mm.yyyy.
type Employee struct {
	ID         int64  `json:"id"`
	FIO        string `json:"FIO"`
	Gender     string `json:"gender"`
	Birthday   string `json:"birthday"`
	Age        int    `json:"age"`
	Position   string `json:"position"`
	Department string `json:"department"`
	OMSNumber  string `json:"oms_number"`
	DMSNumber  string `json:"dms_number"`
	Status     string `json:"status"`
	IsEdu      bool   `json:"is_edu"`
}

// EmployeeFilter is the query of the employee list. Status selects training
// state: a (all), e (in training) or n (not in training).
type EmployeeFilter struct {
	Search string `form:"search" json:"search"`
	Gender string `form:"gender" json:"gender" validate:"omitempty,oneof=M F"`
	Status string `form:"status" json:"status" validate:"omitempty,oneof=a e n"`
	Sort   string `form:"sort" json:"sort" validate:"omitempty,oneof=asc desc"`
}

// EmployeeForm is the body of the add and personal update endpoints.
type EmployeeForm struct {
	FIO        string `json:"FIO" validate:"required,fullname"`
	Gender     string `json:"gender" validate:"required,oneof=M F"`
	Birthday   string `json:"birthday" validate:"required,birthdate"`
	Position   string `json:"position" validate:"required,min=2,max=100"`
	Department string `json:"department" validate:"max=200"`
	OMSNumber  string `json:"oms_number" validate:"omitempty,oms"`
	DMSNumber  string `json:"dms_number" validate:"omitempty,dms"`
	Status     string `json:"status" validate:"required,oneof=W V BT S"`
	IsEdu      bool   `json:"is_edu"`
}

// MedicalExamForm is the body of the medical exam add and update endpoints.
type MedicalExamForm struct {
	EmployeeID int64  `json:"employee_id,omitempty"`
	ExamType   string `json:"exam_type" validate:"required,oneof=periodic preliminary fluorography psych_examination"`
	ExamDate   string `json:"exam_date" validate:"required,isodate"`
	ExpiryDate string `json:"expiry_date" validate:"required,isodate"`
}

// EducationForm is the body of the education add and update endpoints.
type EducationForm struct {
	EmployeeID       int64  `json:"employee_id,omitempty"`
	Program          string `json:"programm" validate:"required"`
	ProtocolNum      string `json:"protocol_num" validate:"required,max=50"`
	UdostoverenieNum string `json:"udostoverenie_num" validate:"required,max=50"`
	Hours            string `json:"hours" validate:"required,hours"`
	DateFrom         string `json:"date_from" validate:"required,isodate"`
	DateTo           string `json:"date_to" validate:"required,isodate"`
}

// EmployeeDeleteForm is the body of the employee delete endpoint.
type EmployeeDeleteForm struct {
	EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
}

// MedicalExamDeleteForm is the body of the medical exam delete endpoint.
type MedicalExamDeleteForm struct {
	MedID int64 `json:"med_id" validate:"required,gt=0"`
}

// EducationDeleteForm is the body of the education delete endpoint.
type EducationDeleteForm struct {
	EduID int64 `json:"edu_id" validate:"required,gt=0"`
}

// DirectionForm is the body of the medical direction generator. Only the
// fields of the selected examination type are present.
type DirectionForm struct {
	EmployeeID      int64  `json:"employeeId,omitempty"`
	ExaminationType string `json:"examinationType" validate:"required,oneof=preliminary periodic psychiatric"`
	FIO             string `json:"FIO" validate:"required,fullname"`
	BirthDate       string `json:"birthDate" validate:"required,birthdate"`
	Gender          string `json:"gender" validate:"required,oneof=M F"`
	HasOMS          bool   `json:"hasOMS"`
	OMSNumber       string `json:"OMSNumber,omitempty" validate:"omitempty,oms"`
	HasDMS          bool   `json:"hasDMS"`
	DMSNumber       string `json:"DMSNumber,omitempty" validate:"omitempty,dms"`

	EmployerRepresentativeName     string `json:"employerRepresentativeName,omitempty"`
	EmployerRepresentativePosition string `json:"employerRepresentativePosition,omitempty"`
	DirectionNumber                string `json:"directionNumber,omitempty"`
	DirectionDate                  string `json:"directionDate,omitempty" validate:"omitempty,isodate"`
	MedicalOrganization            string `json:"medicalOrganization,omitempty" validate:"omitempty,min=3,max=500"`
	MedicalAddress                 string `json:"medicalAddress,omitempty"`
	OGRNCode                       string `json:"ogrnCode,omitempty" validate:"omitempty,ogrn"`
	MedicalEmail                   string `json:"medicalEmail,omitempty" validate:"omitempty,email"`
	MedicalPhone                   string `json:"medicalPhone,omitempty" validate:"omitempty,phone"`
	DepartmentName                 string `json:"departmentName,omitempty"`
	Position                       string `json:"position,omitempty"`
	HazardFactors                  string `json:"hazardFactors,omitempty" validate:"max=1000"`

	DirectionDatePsych  string `json:"directionDatePsych,omitempty" validate:"omitempty,isodate"`
	EmployerName        string `json:"employerName,omitempty" validate:"omitempty,min=3,max=255"`
	EmployerEmail       string `json:"employerEmail,omitempty" validate:"omitempty,email"`
	EmployerPhone       string `json:"employerPhone,omitempty" validate:"omitempty,phone"`
	OKVEDCode           string `json:"okvedCode,omitempty" validate:"omitempty,min=2,max=10"`
	MedicalOrgPsych     string `json:"medicalOrgPsych,omitempty"`
	MedicalAddressPsych string `json:"medicalAddressPsych,omitempty"`
	OGRNPsych           string `json:"ogrnPsych,omitempty" validate:"omitempty,ogrn"`
	MedicalEmailPsych   string `json:"medicalEmailPsych,omitempty" validate:"omitempty,email"`
	MedicalPhonePsych   string `json:"medicalPhonePsych,omitempty" validate:"omitempty,phone"`
	PositionPsych       string `json:"positionPsych,omitempty"`
	ActivityTypes       string `json:"activityTypes,omitempty" validate:"max=1000"`
	PreviousConclusions string `json:"previousConclusions,omitempty" validate:"max=2000"`
}
