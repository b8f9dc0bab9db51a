package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/models"
)

// hostTokenLookup resolves a report token to its host for the installer.
type hostTokenLookup interface {
	HostByToken(ctx context.Context, token string) (models.Host, error)
}

type InstallHandler struct {
	store         hostTokenLookup
	ingestBaseURL string
	log           *slog.Logger
}

func NewInstallHandler(store hostTokenLookup, ingestBaseURL string, logger *slog.Logger) *InstallHandler {
	return &InstallHandler{
		store:         store,
		ingestBaseURL: ingestBaseURL,
		log:           logger,
	}
}

// agentScript is the reporting agent installed on hosts. It samples the
// system once a minute and pushes the numbers to the ingest endpoint.
const agentScript = `#!/bin/sh
# hostpulse reporting agent for %s
set -u

TOKEN="%s"
REPORT_URL="%s/api/report"
INTERVAL=60

report() {
    CPU=$(top -bn1 | awk -F'[, ]+' '/Cpu\(s\)/ {print 100-$8; exit}')
    read -r RAM_TOTAL RAM_USED <<EOF
$(free -m | awk '/^Mem:/ {print $2, $3}')
EOF
    RAM_PCT=$(awk "BEGIN {printf \"%%.1f\", $RAM_USED / $RAM_TOTAL * 100}")
    read -r DISK_TOTAL DISK_USED DISK_PCT <<EOF
$(df -m / | awk 'NR==2 {gsub("%%","",$5); print $2, $3, $5}')
EOF
    read -r NET_IN NET_OUT <<EOF
$(awk -F'[: ]+' 'NR>2 && $2!="lo" {rx+=$3; tx+=$11} END {print rx+0, tx+0}' /proc/net/dev)
EOF
    LOAD=$(awk '{print $1}' /proc/loadavg)
    UPTIME=$(awk '{print int($1)}' /proc/uptime)

    curl -fsS -m 15 -X POST "$REPORT_URL" \
        -H "Content-Type: application/json" \
        -d "{\"token\":\"$TOKEN\",\"cpuUsage\":$CPU,\"ramUsage\":$RAM_PCT,\"ramTotal\":$RAM_TOTAL,\"ramUsed\":$RAM_USED,\"diskUsage\":$DISK_PCT,\"diskTotal\":$DISK_TOTAL,\"diskUsed\":$DISK_USED,\"netIn\":$NET_IN,\"netOut\":$NET_OUT,\"load\":$LOAD,\"uptime\":$UPTIME}" \
        || echo "report failed" >&2
}

while true; do
    report
    sleep "$INTERVAL"
done
`

// Script serves the agent install script for the host owning the token.
func (h *InstallHandler) Script(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	host, err := h.store.HostByToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid token"})
			return
		}
		h.log.Error("host lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build install script"})
		return
	}

	script := fmt.Sprintf(agentScript, host.Name, host.Token, h.ingestBaseURL)
	c.Data(http.StatusOK, "text/x-shellscript; charset=utf-8", []byte(script))
}
