package sheet

import "strings"

// Field identifies one logical column of the exam schedule.
type Field int

const (
	FieldClass Field = iota
	FieldExamTime
	FieldExamRoom
	FieldCourseName
	FieldTeacher
	FieldStudentCount
)

func (f Field) String() string {
	switch f {
	case FieldClass:
		return "classColumn"
	case FieldExamTime:
		return "examTimeColumn"
	case FieldExamRoom:
		return "examRoomColumn"
	case FieldCourseName:
		return "courseNameColumn"
	case FieldTeacher:
		return "teacherColumn"
	case FieldStudentCount:
		return "studentCountColumn"
	default:
		return "unknown"
	}
}

type keywordBinding struct {
	keyword string
	field   Field
}

// headerKeywords is evaluated in order for every header. Both 考试地点 and
// 考试教室 appear in real sheets and bind the same field.
var headerKeywords = []keywordBinding{
	{"班级", FieldClass},
	{"考试时间", FieldExamTime},
	{"考试地点", FieldExamRoom},
	{"考试教室", FieldExamRoom},
	{"课程名称", FieldCourseName},
	{"任课教师", FieldTeacher},
	{"人数", FieldStudentCount},
}

// ColumnMap binds logical fields to the header strings of one sheet. An
// empty string means the field was not found.
type ColumnMap struct {
	Class        string `json:"classColumn,omitempty"`
	ExamTime     string `json:"examTimeColumn,omitempty"`
	ExamRoom     string `json:"examRoomColumn,omitempty"`
	CourseName   string `json:"courseNameColumn,omitempty"`
	Teacher      string `json:"teacherColumn,omitempty"`
	StudentCount string `json:"studentCountColumn,omitempty"`
}

// ResolveColumns matches headers against the keyword list by substring.
// Headers are visited in column order and the last matching header wins
// when several match the same field.
func ResolveColumns(headers []string) ColumnMap {
	var cm ColumnMap
	for _, h := range headers {
		for _, kb := range headerKeywords {
			if strings.Contains(h, kb.keyword) {
				cm.set(kb.field, h)
			}
		}
	}
	return cm
}

// Bound returns the number of fields that found a header.
func (cm ColumnMap) Bound() int {
	n := 0
	for _, f := range []Field{FieldClass, FieldExamTime, FieldExamRoom, FieldCourseName, FieldTeacher, FieldStudentCount} {
		if cm.Get(f) != "" {
			n++
		}
	}
	return n
}

func (cm ColumnMap) Get(f Field) string {
	switch f {
	case FieldClass:
		return cm.Class
	case FieldExamTime:
		return cm.ExamTime
	case FieldExamRoom:
		return cm.ExamRoom
	case FieldCourseName:
		return cm.CourseName
	case FieldTeacher:
		return cm.Teacher
	case FieldStudentCount:
		return cm.StudentCount
	}
	return ""
}

func (cm *ColumnMap) set(f Field, header string) {
	switch f {
	case FieldClass:
		cm.Class = header
	case FieldExamTime:
		cm.ExamTime = header
	case FieldExamRoom:
		cm.ExamRoom = header
	case FieldCourseName:
		cm.CourseName = header
	case FieldTeacher:
		cm.Teacher = header
	case FieldStudentCount:
		cm.StudentCount = header
	}
}
