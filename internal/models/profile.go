package models

// StudentProfile is the academic-store record paired with a STUDENT identity.
// Created exactly once at provisioning time, keyed by the identity id.
type StudentProfile struct {
	IdentityID string `db:"identity_id" json:"identity_id"`
	RollNo     string `db:"roll_no" json:"roll_no"`
	Program    string `db:"program" json:"program"`
	Year       int    `db:"year" json:"year"`
}

// InstructorProfile is the academic-store record paired with an INSTRUCTOR identity.
type InstructorProfile struct {
	IdentityID string `db:"identity_id" json:"identity_id"`
	EmployeeID string `db:"employee_id" json:"employee_id"`
	Department string `db:"department" json:"department"`
}
