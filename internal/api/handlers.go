package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/engine"
	"github.com/rshade/batchengine/internal/logging"
	"github.com/rshade/batchengine/pkg/version"
)

type handlers struct {
	engine *engine.Engine
}

// createBatchRequest is the body of POST /batches.
type createBatchRequest struct {
	Type                   string `json:"type"`
	TotalWorkItems         int    `json:"totalWorkItems"`
	BatchJobsPerSeed       int    `json:"batchJobsPerSeed"`
	InvocationsPerBatchJob int    `json:"invocationsPerBatchJob"`
	TenantID               string `json:"tenantId"`
}

// suspensionRequest is the body of PUT /batches/:id/suspended.
type suspensionRequest struct {
	Suspended *bool `json:"suspended"`
}

// statisticsResponse adds derived values to a progress snapshot.
type statisticsResponse struct {
	batch.Progress
	PercentComplete float64 `json:"percentComplete"`
	ItemsPerSecond  float64 `json:"itemsPerSecond"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func (h *handlers) listBatches(c *gin.Context) {
	q, page, err := h.parseQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var batches []batch.Batch
	if page.set {
		batches, err = q.ListPage(c.Request.Context(), page.first, page.max)
	} else {
		batches, err = q.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	c.JSON(http.StatusOK, batches)
}

func (h *handlers) countBatches(c *gin.Context) {
	q, _, err := h.parseQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	count, err := q.Count(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *handlers) getBatch(c *gin.Context) {
	b, err := h.engine.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) createBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	b, err := h.engine.CreateBatch(c.Request.Context(), batch.Params{
		Type:                   req.Type,
		TotalWorkItems:         req.TotalWorkItems,
		BatchJobsPerSeed:       req.BatchJobsPerSeed,
		InvocationsPerBatchJob: req.InvocationsPerBatchJob,
		TenantID:               req.TenantID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) deleteBatch(c *gin.Context) {
	cascade := false
	if v, ok := c.GetQuery("cascade"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, batch.InvalidArgument("cascade must be true or false"))
			return
		}
		cascade = parsed
	}

	if err := h.engine.DeleteBatch(c.Request.Context(), c.Param("id"), cascade); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) statistics(c *gin.Context) {
	p, err := h.engine.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statisticsResponse{
		Progress:        p,
		PercentComplete: p.PercentComplete(),
		ItemsPerSecond:  p.ItemsPerSecond(),
	})
}

func (h *handlers) listJobs(c *gin.Context) {
	jobs, err := h.engine.ListJobs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *handlers) setSuspended(c *gin.Context) {
	var req suspensionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Suspended == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `request body must be {"suspended": true|false}`})
		return
	}

	var err error
	if *req.Suspended {
		err = h.engine.SuspendBatch(c.Request.Context(), c.Param("id"))
	} else {
		err = h.engine.ActivateBatch(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// pagination holds firstResult/maxResults; set is false when neither was given.
type pagination struct {
	set   bool
	first int
	max   int
}

// parseQuery turns query parameters into a batch query. Filter and sort
// errors stay inside the query and surface at the terminal call.
func (h *handlers) parseQuery(c *gin.Context) (batch.Query, pagination, error) {
	q := h.engine.CreateBatchQuery()
	var page pagination

	if v, ok := c.GetQuery("batchId"); ok {
		q = q.BatchID(v)
	}
	if v, ok := c.GetQuery("type"); ok {
		q = q.Type(v)
	}
	if values, ok := c.GetQueryArray("tenantId"); ok {
		var tenants []string
		for _, v := range values {
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenants = append(tenants, t)
				}
			}
		}
		q = q.TenantIDIn(tenants...)
	}

	if v, ok := c.GetQuery("withoutTenantId"); ok {
		without, err := strconv.ParseBool(v)
		if err != nil {
			return q, page, batch.InvalidArgument("withoutTenantId must be true or false")
		}
		if without {
			q = q.WithoutTenantID()
		}
	}
	if v, ok := c.GetQuery("suspended"); ok {
		suspended, err := strconv.ParseBool(v)
		if err != nil {
			return q, page, batch.InvalidArgument("suspended must be true or false")
		}
		if suspended {
			q = q.Suspended()
		} else {
			q = q.Active()
		}
	}

	sortBy, hasSortBy := c.GetQuery("sortBy")
	sortOrder, hasSortOrder := c.GetQuery("sortOrder")
	if hasSortBy != hasSortOrder {
		return q, page, batch.InvalidArgument("Only a single sorting parameter specified. sortBy and sortOrder required")
	}
	if hasSortBy {
		switch batch.Property(sortBy) {
		case batch.PropertyID:
			q = q.OrderByID()
		case batch.PropertyTenantID:
			q = q.OrderByTenantID()
		default:
			return q, page, batch.InvalidArgument("Cannot set query parameter 'sortBy' to value '" + sortBy + "'")
		}
		switch batch.Direction(strings.ToLower(sortOrder)) {
		case batch.Asc:
			q = q.Asc()
		case batch.Desc:
			q = q.Desc()
		default:
			return q, page, batch.InvalidArgument("Cannot set query parameter 'sortOrder' to value '" + sortOrder + "'")
		}
	}

	page.max = math.MaxInt
	for name, dst := range map[string]*int{"firstResult": &page.first, "maxResults": &page.max} {
		v, ok := c.GetQuery(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, page, batch.InvalidArgument(name + " must be an integer")
		}
		*dst = n
		page.set = true
	}

	return q, page, nil
}

// writeError maps error kinds to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, batch.ErrNullValue),
		errors.Is(err, batch.ErrInvalidQuery),
		errors.Is(err, batch.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, batch.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, batch.ErrBatchJobsRemain),
		errors.Is(err, batch.ErrNonUnique):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log := logging.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("request failed")
	}

	body := gin.H{"error": err.Error()}
	var be *batch.Error
	if errors.As(err, &be) {
		body["type"] = be.Kind.Error()
	}
	c.JSON(status, body)
}
