package echoapi

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
)

const reportSheet = "Report"

var reportHeader = []interface{}{"Student", "Student number", "Grade average", "Grades", "Points", "Attendance (%)", "Submissions"}

// courseReportRow is the line of one enrolled student in a course report.
type courseReportRow struct {
	Name          string
	StudentNumber string
	GradeAverage  int
	GradeCount    int
	Points        int
	Attendance    float64
	Submissions   int
}

func (row courseReportRow) values() []interface{} {
	return []interface{}{row.Name, row.StudentNumber, row.GradeAverage, row.GradeCount, row.Points, row.Attendance, row.Submissions}
}

func (api *teacherApi) courseReportRows(ctx context.Context, teacherID string, c course.Course) ([]courseReportRow, error) {
	grades, err := api.GradeSvc.QueryCourse(ctx, teacherID, c.ID, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	gradesByStudent := make(map[string][]grade.Grade)
	for _, g := range grades {
		gradesByStudent[g.StudentID] = append(gradesByStudent[g.StudentID], g)
	}

	pts, err := api.PointsSvc.QueryCourse(ctx, teacherID, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying points")
	}
	pointsByStudent := make(map[string]int, len(pts))
	for _, pt := range pts {
		pointsByStudent[pt.StudentID] = pt.Points
	}

	att, err := api.AttendanceSvc.QueryCourse(ctx, teacherID, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	rateByStudent := make(map[string]float64, len(att))
	for _, a := range att {
		rateByStudent[a.StudentID] = a.Rate
	}

	assignments, err := api.AssignmentSvc.QueryTeacher(ctx, teacherID, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	subsByStudent := make(map[string]int)
	for _, a := range assignments {
		subs, err := api.AssignmentSvc.Submissions(ctx, teacherID, a.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying submissions")
		}
		for _, sub := range subs {
			subsByStudent[sub.StudentID]++
		}
	}

	rows := make([]courseReportRow, 0, len(c.StudentIDs))
	for _, studentID := range c.StudentIDs {
		usr, err := api.UserSvc.GetByID(ctx, studentID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, errors.Wrap(err, "finding student")
		}
		row := courseReportRow{
			Name:         usr.FullName(),
			GradeAverage: grade.Average(gradesByStudent[studentID]),
			GradeCount:   len(gradesByStudent[studentID]),
			Points:       pointsByStudent[studentID],
			Attendance:   rateByStudent[studentID],
			Submissions:  subsByStudent[studentID],
		}
		if usr.StudentNumber != nil {
			row.StudentNumber = *usr.StudentNumber
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

// writeCourseReport renders the report rows as an xlsx workbook.
func writeCourseReport(c course.Course, rows []courseReportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(reportSheet, "A1", c.Code+" "+c.Name); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reportSheet, "A2", &reportHeader); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		values := row.values()
		if err = f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

func reportFilename(c course.Course) string {
	code := strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, c.Code)
	return code + "-report.xlsx"
}
