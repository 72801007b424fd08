package handlers

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"blogify/internal/logger"
	"blogify/internal/utils/helpers"

	"go.uber.org/zap"
)

const (
	logsDefaultLimit = 200
	logsMaxLimit     = 1000
	logsRetention    = 7
)

var reDay = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AdminLogsHandler: просмотр JSON-логов, которые пишет lumberjack:
// текущий app.log и ротированные app-<timestamp>.log[.gz].
type AdminLogsHandler struct {
	LogDir string
	now    func() time.Time
}

func NewAdminLogsHandler(logDir string) *AdminLogsHandler {
	if logDir == "" {
		logDir = "logs"
	}
	return &AdminLogsHandler{LogDir: logDir, now: time.Now}
}

// ListDays godoc
// @Summary      Доступные дни логов
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} helpers.Response
// @Router       /api/admin/logs/days [get]
func (h *AdminLogsHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	today := h.now().Local()
	days := []string{}
	for i := 0; i < logsRetention; i++ {
		d := today.AddDate(0, 0, -i).Format("2006-01-02")
		if files := h.filesForDay(d); len(files) > 0 {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	helpers.JSON(w, http.StatusOK, map[string]any{"days": days})
}

// GetLogs godoc
// @Summary      Логи за день
// @Description  Фильтры: уровень (CSV), подстрока, лимит.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        day    query  string true  "Дата (YYYY-MM-DD)"
// @Param        level  query  string false "CSV уровней: debug,info,warn,error"
// @Param        q      query  string false "Поиск по подстроке"
// @Param        limit  query  int    false "Лимит (по умолч. 200, макс. 1000)"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /api/admin/logs [get]
func (h *AdminLogsHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if !reDay.MatchString(day) {
		helpers.Error(w, http.StatusBadRequest, "bad day")
		return
	}
	files := h.filesForDay(day)
	if len(files) == 0 {
		helpers.Error(w, http.StatusNotFound, "day not found")
		return
	}

	levels := map[string]bool{}
	for _, l := range strings.Split(r.URL.Query().Get("level"), ",") {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			levels[l] = true
		}
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	limit := parseLimit(r.URL.Query().Get("limit"), logsDefaultLimit, logsMaxLimit)

	items := make([]json.RawMessage, 0)
	for _, path := range files {
		err := scanLines(path, func(raw []byte) bool {
			if q != "" && !strings.Contains(strings.ToLower(string(raw)), q) {
				return true
			}
			var entry struct {
				Level string `json:"level"`
			}
			if json.Unmarshal(raw, &entry) != nil {
				return true
			}
			if len(levels) > 0 && !levels[strings.ToUpper(entry.Level)] {
				return true
			}
			items = append(items, append(json.RawMessage{}, raw...))
			return len(items) < limit
		})
		if err != nil {
			logger.WithCtx(r.Context()).Warn("Не удалось прочитать лог-файл", zap.String("path", path), zap.Error(err))
		}
		if len(items) >= limit {
			break
		}
	}

	helpers.JSON(w, http.StatusOK, map[string]any{"day": day, "items": items})
}

func (h *AdminLogsHandler) filesForDay(day string) []string {
	entries, err := os.ReadDir(h.LogDir)
	if err != nil {
		return nil
	}
	today := h.now().Local().Format("2006-01-02")

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == "app.log" && day == today:
			files = append(files, filepath.Join(h.LogDir, name))
		case strings.HasPrefix(name, "app-"+day) &&
			(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".gz")):
			files = append(files, filepath.Join(h.LogDir, name))
		}
	}
	sort.Strings(files)
	return files
}

func scanLines(path string, handle func([]byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	sc := bufio.NewScanner(reader)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if !handle(sc.Bytes()) {
			break
		}
	}
	return sc.Err()
}

func parseLimit(s string, def, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
