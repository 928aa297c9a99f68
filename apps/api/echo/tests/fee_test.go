package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/tests"
)

func Test_feeApi(t *testing.T) {
	e := setup(t)
	term := testutil.CreateTerm(t, e.acaRepo, "First Term")
	session := testutil.CreateSession(t, e.acaRepo, "2024/2025")
	student := testutil.CreateStudent(t, e.usrRepo, e.acaRepo, "Ngozi", "")
	other := testutil.CreateStudent(t, e.usrRepo, e.acaRepo, "Obinna", "")
	adminToken := getToken(t, e.conf, testutil.CreateAdmin(t, e.usrRepo, "Bursar"))
	studentToken := getToken(t, e.conf, student)

	create := func(t *testing.T, in fee.FeeInput) fee.Fee {
		rec := e.do(http.MethodPost, "/v1/fees", adminToken, marchallObj(t, in))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var f fee.Fee
		unmarshal(t, rec, &f)
		return f
	}

	paid := create(t, fee.FeeInput{StudentID: student.ID, Amount: 5000, Description: "Tuition", TermID: term.ID, SessionID: session.ID, IsPaid: true})
	partial := create(t, fee.FeeInput{StudentID: student.ID, Amount: 1500, Description: "Uniform", TermID: term.ID})
	unpaid := create(t, fee.FeeInput{StudentID: other.ID, Description: "Excursion"})
	assert.Equal(t, fee.StatusPaid, paid.Status)
	assert.Equal(t, fee.StatusPartial, partial.Status)
	assert.Equal(t, fee.StatusUnpaid, unpaid.Status)

	e.runTests(t, []httpTest{
		{name: "Admin required", path: "/v1/fees", token: studentToken, wantCode: http.StatusForbidden},
		{
			name: "Unknown student", method: http.MethodPost, path: "/v1/fees", token: adminToken,
			body: marchallObj(t, fee.FeeInput{StudentID: "1f7c4c1e-0000-4000-8000-000000000000", Amount: 10}), wantCode: http.StatusNotFound,
		},
		{name: "Invalid status filter", path: "/v1/fees?status=lol", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "Unknown fee", path: "/v1/fees/1f7c4c1e-0000-4000-8000-000000000000", token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("query", func(t *testing.T) {
		q := url.Values{}
		q.Set("status", string(fee.StatusPartial))
		rec := e.do(http.MethodGet, "/v1/fees?"+q.Encode(), adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var fees []fee.Fee
		unmarshal(t, rec, &fees)
		require.Len(t, fees, 1)
		assert.Equal(t, partial.ID, fees[0].ID)
	})

	t.Run("my fees", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/v1/fees/me", studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var fees []fee.Fee
		unmarshal(t, rec, &fees)
		assert.Len(t, fees, 2)
	})

	t.Run("update re-derives the status", func(t *testing.T) {
		in := fee.FeeInput{StudentID: student.ID, Amount: 1500, Description: "Uniform", TermID: term.ID, IsPaid: true}
		rec := e.do(http.MethodPut, "/v1/fees/"+partial.ID, adminToken, marchallObj(t, in))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var f fee.Fee
		unmarshal(t, rec, &f)
		assert.Equal(t, fee.StatusPaid, f.Status)
	})

	t.Run("summary", func(t *testing.T) {
		rec := e.do(http.MethodGet, "/v1/fees/summary", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summaries []fee.TermSummary
		unmarshal(t, rec, &summaries)
		var total float64
		for _, s := range summaries {
			total += s.TotalPaid
		}
		assert.Equal(t, 6500.0, total)
	})

	t.Run("invoice", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		rec := e.do(http.MethodPost, "/v1/fees/"+paid.ID+"/invoice", adminToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Invoice sent."})}, rec)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, student.Email, msg.To[0].Address)
		assert.Contains(t, msg.Subject, "INV-")
		assert.Contains(t, msg.TextContent, "Tuition")
	})

	t.Run("delete", func(t *testing.T) {
		rec := e.do(http.MethodDelete, "/v1/fees/"+unpaid.ID, adminToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = e.do(http.MethodDelete, "/v1/fees/"+unpaid.ID, adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
