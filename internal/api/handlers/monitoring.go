package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/alerts"
	"github.com/pvieira/domain-sentry/internal/core"
	"github.com/pvieira/domain-sentry/internal/history"
	"github.com/pvieira/domain-sentry/internal/monitor"
	"github.com/pvieira/domain-sentry/internal/probe"
	"github.com/pvieira/domain-sentry/internal/ratelimit"
	"github.com/pvieira/domain-sentry/internal/rules"
)

// MonitoringHandler serves the multiplexed monitoring route. Actions are
// dispatched through explicit command tables so the full action set stays
// auditable in one place.
type MonitoringHandler struct {
	rules        *rules.Store
	alerts       *alerts.Engine
	history      *history.Store
	service      *monitor.Service
	whois        *probe.WhoisProbe
	limiter      *ratelimit.Limiter
	adminSecret  string
	snapshotPath string
	logger       *zap.Logger
}

func NewMonitoringHandler(
	ruleStore *rules.Store,
	alertEngine *alerts.Engine,
	historyStore *history.Store,
	service *monitor.Service,
	whoisProbe *probe.WhoisProbe,
	limiter *ratelimit.Limiter,
	adminSecret, snapshotPath string,
	logger *zap.Logger,
) *MonitoringHandler {
	return &MonitoringHandler{
		rules:        ruleStore,
		alerts:       alertEngine,
		history:      historyStore,
		service:      service,
		whois:        whoisProbe,
		limiter:      limiter,
		adminSecret:  adminSecret,
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

type command struct {
	admin  bool
	handle func(h *MonitoringHandler, c *gin.Context)
}

var getCommands = map[string]command{
	"metrics":    {handle: (*MonitoringHandler).getDashboard},
	"domains":    {handle: (*MonitoringHandler).getDomains},
	"history":    {handle: (*MonitoringHandler).getHistory},
	"timeseries": {handle: (*MonitoringHandler).getTimeSeries},
	"export":     {handle: (*MonitoringHandler).getExport},
	"whois":      {handle: (*MonitoringHandler).getWhois},
}

var postCommands = map[string]command{
	"":        {handle: (*MonitoringHandler).createRule},
	"alert":   {handle: (*MonitoringHandler).alertAction},
	"check":   {handle: (*MonitoringHandler).runCheck},
	"import":  {admin: true, handle: (*MonitoringHandler).importData},
	"cleanup": {admin: true, handle: (*MonitoringHandler).cleanupData},
	"save":    {admin: true, handle: (*MonitoringHandler).saveData},
}

func (h *MonitoringHandler) dispatch(c *gin.Context, commands map[string]command) {
	action := c.Query("action")
	cmd, ok := commands[action]
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown action: %s", action)
		return
	}
	if cmd.admin && !h.adminAuthorized(c) {
		respondError(c, http.StatusUnauthorized, "admin secret required")
		return
	}
	cmd.handle(h, c)
}

func (h *MonitoringHandler) adminAuthorized(c *gin.Context) bool {
	return h.adminSecret != "" && c.GetHeader("X-Admin-Secret") == h.adminSecret
}

func (h *MonitoringHandler) Get(c *gin.Context) {
	switch c.Query("type") {
	case "rules":
		h.listRules(c)
		return
	case "alerts":
		h.listAlerts(c)
		return
	}
	h.dispatch(c, getCommands)
}

func (h *MonitoringHandler) Post(c *gin.Context) {
	h.dispatch(c, postCommands)
}

// --- rules ---

func (h *MonitoringHandler) listRules(c *gin.Context) {
	domain := c.Query("domain")
	if domain != "" && !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "invalid domain: %s", domain)
		return
	}
	ruleList := h.rules.List(domain)
	respondOK(c, gin.H{"rules": ruleList, "count": len(ruleList)})
}

func (h *MonitoringHandler) createRule(c *gin.Context) {
	var in rules.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if !core.ValidDomain(in.Domain) {
		respondError(c, http.StatusBadRequest, "invalid domain: %s", in.Domain)
		return
	}
	rule := h.rules.Create(in)
	c.JSON(http.StatusCreated, gin.H{"success": true, "rule": rule})
}

func (h *MonitoringHandler) Put(c *gin.Context) {
	ruleID := c.Query("ruleId")
	if ruleID == "" {
		respondError(c, http.StatusBadRequest, "ruleId is required")
		return
	}
	var patch rules.UpdatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if !h.rules.Update(ruleID, patch) {
		respondError(c, http.StatusNotFound, "rule not found: %s", ruleID)
		return
	}
	rule, _ := h.rules.Get(ruleID)
	respondOK(c, gin.H{"rule": rule})
}

func (h *MonitoringHandler) Delete(c *gin.Context) {
	if ruleID := c.Query("ruleId"); ruleID != "" {
		if !h.rules.Remove(ruleID) {
			respondError(c, http.StatusNotFound, "rule not found: %s", ruleID)
			return
		}
		respondOK(c, gin.H{"deleted": ruleID})
		return
	}
	if domain := c.Query("domain"); domain != "" {
		if !h.adminAuthorized(c) {
			respondError(c, http.StatusUnauthorized, "admin secret required")
			return
		}
		if !core.ValidDomain(domain) {
			respondError(c, http.StatusBadRequest, "invalid domain: %s", domain)
			return
		}
		removed := h.history.DeleteDomain(domain)
		respondOK(c, gin.H{"domain": domain, "removed_entries": removed})
		return
	}
	respondError(c, http.StatusBadRequest, "ruleId or domain is required")
}

// --- alerts ---

func (h *MonitoringHandler) listAlerts(c *gin.Context) {
	domain := c.Query("domain")
	if domain != "" && !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "invalid domain: %s", domain)
		return
	}
	alertList := h.alerts.List(domain)
	respondOK(c, gin.H{"alerts": alertList, "count": len(alertList)})
}

type alertActionRequest struct {
	Action  string `json:"action" binding:"required"`
	AlertID string `json:"alertId" binding:"required"`
}

func (h *MonitoringHandler) alertAction(c *gin.Context) {
	var req alertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	var err error
	switch req.Action {
	case "acknowledge":
		err = h.alerts.Acknowledge(req.AlertID)
	case "resolve":
		err = h.alerts.Resolve(req.AlertID)
	case "delete":
		err = h.alerts.Delete(req.AlertID)
	default:
		respondError(c, http.StatusBadRequest, "unknown alert action: %s", req.Action)
		return
	}

	switch {
	case errors.Is(err, alerts.ErrNotFound):
		respondError(c, http.StatusNotFound, "alert not found: %s", req.AlertID)
	case errors.Is(err, alerts.ErrTerminalState):
		respondError(c, http.StatusBadRequest, "alert %s is in a terminal state", req.AlertID)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "alert action failed: %v", err)
	default:
		respondOK(c, gin.H{"alert_id": req.AlertID, "action": req.Action})
	}
}

// --- checks ---

type checkRequest struct {
	RuleID   string `json:"ruleId"`
	CheckAll bool   `json:"checkAll"`
}

func (h *MonitoringHandler) runCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if req.CheckAll {
		outcomes := h.service.CheckAll(c.Request.Context())
		newAlerts := []*core.CertificateAlert{}
		for _, outcome := range outcomes {
			newAlerts = append(newAlerts, outcome.NewAlerts...)
		}
		respondOK(c, gin.H{"outcomes": outcomes, "new_alerts": newAlerts})
		return
	}

	if req.RuleID == "" {
		respondError(c, http.StatusBadRequest, "ruleId or checkAll is required")
		return
	}

	outcome, err := h.service.CheckRule(c.Request.Context(), req.RuleID)
	switch {
	case errors.Is(err, monitor.ErrRuleNotFound):
		respondError(c, http.StatusNotFound, "rule not found: %s", req.RuleID)
	case errors.Is(err, monitor.ErrRateLimited):
		respondRateLimited(c, h.limiter.RetryAfter())
	case err != nil:
		respondError(c, http.StatusInternalServerError, "check failed: %v", err)
	default:
		respondOK(c, gin.H{"outcome": outcome, "new_alerts": outcome.NewAlerts})
	}
}

// --- dashboard ---

func (h *MonitoringHandler) getDashboard(c *gin.Context) {
	respondOK(c, gin.H{"metrics": h.service.Dashboard()})
}

func (h *MonitoringHandler) getDomains(c *gin.Context) {
	overview := h.history.Overview()
	respondOK(c, gin.H{"domains": overview, "count": len(overview)})
}

func (h *MonitoringHandler) getHistory(c *gin.Context) {
	domain := c.Query("domain")
	if !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "valid domain is required")
		return
	}
	entries := h.history.History(domain, core.CheckType(c.Query("type")), daysParam(c))
	respondOK(c, gin.H{"history": entries, "count": len(entries)})
}

func (h *MonitoringHandler) getTimeSeries(c *gin.Context) {
	domain := c.Query("domain")
	if !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "valid domain is required")
		return
	}
	typ := c.Query("type")
	metric := c.Query("metric")
	if typ == "" || metric == "" {
		respondError(c, http.StatusBadRequest, "type and metric are required")
		return
	}
	points, err := h.history.TimeSeries(domain, core.CheckType(typ), metric, daysParam(c))
	if err != nil {
		respondError(c, http.StatusBadRequest, "%v", err)
		return
	}
	respondOK(c, gin.H{"series": points, "count": len(points)})
}

func (h *MonitoringHandler) getExport(c *gin.Context) {
	domain := c.Query("domain")
	if domain != "" && !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "invalid domain: %s", domain)
		return
	}
	c.JSON(http.StatusOK, h.history.Export(domain))
}

func (h *MonitoringHandler) getWhois(c *gin.Context) {
	domain := c.Query("domain")
	if !core.ValidDomain(domain) {
		respondError(c, http.StatusBadRequest, "valid domain is required")
		return
	}
	if !h.limiter.Admit("check:" + domain) {
		respondRateLimited(c, h.limiter.RetryAfter())
		return
	}
	info, err := h.whois.Lookup(domain)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "whois lookup failed: %v", err)
		return
	}
	respondOK(c, gin.H{"whois": info})
}

// --- data admin ---

func (h *MonitoringHandler) importData(c *gin.Context) {
	var snap history.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		respondError(c, http.StatusBadRequest, "invalid snapshot: %v", err)
		return
	}
	imported, skipped, err := h.history.Import(&snap)
	if err != nil {
		respondError(c, http.StatusBadRequest, "import failed: %v", err)
		return
	}
	respondOK(c, gin.H{"imported": imported, "skipped": skipped})
}

type cleanupRequest struct {
	MaxAgeDays int `json:"maxAgeDays"`
}

func (h *MonitoringHandler) cleanupData(c *gin.Context) {
	req := cleanupRequest{MaxAgeDays: 90}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}
	if req.MaxAgeDays < 1 {
		respondError(c, http.StatusBadRequest, "maxAgeDays must be positive")
		return
	}
	removed := h.history.Cleanup(req.MaxAgeDays)
	respondOK(c, gin.H{"removed": removed})
}

func (h *MonitoringHandler) saveData(c *gin.Context) {
	path := h.snapshotPath
	if err := h.history.Save(path); err != nil {
		h.logger.Error("snapshot save failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "snapshot save failed")
		return
	}
	respondOK(c, gin.H{"path": path, "entries": h.history.Size()})
}

// daysParam clamps the days query parameter into [1, 90], defaulting to 30.
func daysParam(c *gin.Context) int {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			days = n
		}
	}
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}
	return days
}
