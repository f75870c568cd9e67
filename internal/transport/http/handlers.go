package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"prepcuet/internal/app"
	"prepcuet/internal/domain"
)

// Handler serves the submission, release and broadcast endpoints.
type Handler struct {
	submissions *app.SubmissionService
	scanner     *app.ReleaseScanner
	scanAuth    app.ScanAuthorizer
	broadcasts  *app.BroadcastService
}

func NewHandler(submissions *app.SubmissionService, scanner *app.ReleaseScanner, scanAuth app.ScanAuthorizer, broadcasts *app.BroadcastService) *Handler {
	return &Handler{
		submissions: submissions,
		scanner:     scanner,
		scanAuth:    scanAuth,
		broadcasts:  broadcasts,
	}
}

type submitTestRequest struct {
	UserID      string               `json:"userId" binding:"required"`
	TestID      string               `json:"testId" binding:"required"`
	UserEmail   string               `json:"userEmail"`
	UserName    string               `json:"userName"`
	TestTitle   string               `json:"testTitle"`
	Answers     []domain.AnswerEntry `json:"answers"`
	Score       float64              `json:"score"`
	Correct     int                  `json:"correct"`
	Incorrect   int                  `json:"incorrect"`
	Skipped     int                  `json:"skipped"`
	TimeSpent   int                  `json:"timeSpent"`
	TabSwitches int                  `json:"tabSwitches"`
}

type submitTestResponse struct {
	Success           bool   `json:"success"`
	ResultID          string `json:"resultId"`
	ResultAvailableAt int64  `json:"resultAvailableAt"`
	Attempts          int    `json:"attempts"`
}

// SubmitTest handles POST /api/submit-test.
func (h *Handler) SubmitTest(c *gin.Context) {
	var req submitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	var sub domain.Submission
	if err := copier.Copy(&sub, &req); err != nil {
		writeError(c, err)
		return
	}
	receipt, err := h.submissions.Submit(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitTestResponse{
		Success:           true,
		ResultID:          receipt.ResultID,
		ResultAvailableAt: receipt.ResultAvailableAt.UnixMilli(),
		Attempts:          receipt.AttemptNumber,
	})
}

// ProcessResults handles GET and POST /api/process-results.
func (h *Handler) ProcessResults(c *gin.Context) {
	if err := h.scanAuth.Authorize(c.GetHeader("Authorization")); err != nil {
		writeError(c, err)
		return
	}
	report, err := h.scanner.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if report.Message != "" {
		body := gin.H{"processed": 0, "message": report.Message}
		if report.OutboxDelivered > 0 {
			body["outboxDelivered"] = report.OutboxDelivered
		}
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

type sendTestNotificationRequest struct {
	TestID          string `json:"testId" binding:"required"`
	TestTitle       string `json:"testTitle" binding:"required"`
	TestDescription string `json:"testDescription"`
}

// SendTestNotification handles POST /api/send-test-notification.
func (h *Handler) SendTestNotification(c *gin.Context) {
	var req sendTestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	report, err := h.broadcasts.Broadcast(c.Request.Context(), domain.Broadcast{
		TestID:          req.TestID,
		TestTitle:       req.TestTitle,
		TestDescription: req.TestDescription,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	message := report.Message
	if report.Total > 0 {
		message = fmt.Sprintf("Notification sent to %d of %d users", report.SuccessCount, report.Total)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"details": report,
	})
}

type resultResponse struct {
	ID                string               `json:"resultId"`
	UserID            string               `json:"userId"`
	TestID            string               `json:"testId"`
	TestTitle         string               `json:"testTitle"`
	Answers           []domain.AnswerEntry `json:"answers"`
	Score             float64              `json:"score"`
	Correct           int                  `json:"correct"`
	Incorrect         int                  `json:"incorrect"`
	Skipped           int                  `json:"skipped"`
	TimeSpent         int                  `json:"timeSpent"`
	TabSwitches       int                  `json:"tabSwitches"`
	AttemptNumber     int                  `json:"attemptNumber"`
	Status            domain.AttemptStatus `json:"status"`
	SubmittedAt       int64                `json:"submittedAt" copier:"-"`
	ResultAvailableAt int64                `json:"resultAvailableAt" copier:"-"`
}

func toResultResponse(rec domain.AttemptRecord) (resultResponse, error) {
	var resp resultResponse
	if err := copier.Copy(&resp, &rec); err != nil {
		return resultResponse{}, err
	}
	resp.SubmittedAt = rec.SubmittedAt.UnixMilli()
	resp.ResultAvailableAt = rec.ResultAvailableAt.UnixMilli()
	return resp, nil
}

// GetResult handles GET /api/results/:id?userId=.
func (h *Handler) GetResult(c *gin.Context) {
	rec, err := h.submissions.Result(c.Request.Context(), c.Param("id"), c.Query("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := toResultResponse(rec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type attemptSummary struct {
	ResultID          string               `json:"resultId"`
	AttemptNumber     int                  `json:"attemptNumber"`
	Status            domain.AttemptStatus `json:"status"`
	SubmittedAt       int64                `json:"submittedAt"`
	ResultAvailableAt int64                `json:"resultAvailableAt"`
}

// ListAttempts handles GET /api/tests/:testId/attempts?userId=.
func (h *Handler) ListAttempts(c *gin.Context) {
	history, err := h.submissions.History(c.Request.Context(), c.Query("userId"), c.Param("testId"))
	if err != nil {
		writeError(c, err)
		return
	}
	attempts := make([]attemptSummary, 0, len(history.Attempts))
	for _, rec := range history.Attempts {
		attempts = append(attempts, attemptSummary{
			ResultID:          rec.ID,
			AttemptNumber:     rec.AttemptNumber,
			Status:            rec.Status,
			SubmittedAt:       rec.SubmittedAt.UnixMilli(),
			ResultAvailableAt: rec.ResultAvailableAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"testId":      history.TestID,
		"attempts":    attempts,
		"remaining":   history.Remaining,
		"maxAttempts": domain.MaxAttempts,
	})
}

// Healthz handles GET /healthz.
func Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
