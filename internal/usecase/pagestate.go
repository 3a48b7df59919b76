package usecase

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"panel-agent/internal/config"
	"panel-agent/internal/entity"
	"panel-agent/internal/ports"
	"panel-agent/pkg/apperr"
	"panel-agent/pkg/logg"
	"panel-agent/pkg/tracing"
)

const (
	pageStateServiceName = "PageStateService"
	pageStateTracer      = "usecase.pagestate"
)

var (
	numericCell = regexp.MustCompile(`^\d+$`)
	linkAttrs   = []string{"data-href", "data-url", "onclick"}
)

// PageState reads structured facts from a DOM snapshot of the live page.
// Nothing is cached: every call takes a fresh snapshot.
type PageState struct {
	panel    *config.PanelConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	page     ports.Page
	farmPath *regexp.Regexp
}

func NewPageState(params Params) (*PageState, error) {
	const op = "NewPageState"

	farmPath, err := regexp.Compile(params.Config.PanelConfig.FarmPathPattern)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaField: "PANEL_FARM_PATH_PATTERN",
			apperr.MetaStage: apperr.StageConfig,
		})
	}

	if farmPath.NumSubexp() < 2 {
		return nil, apperr.InvalidReqError(op, "PANEL_FARM_PATH_PATTERN",
			fmt.Errorf("pattern %q needs two capture groups (farm id, section id)", farmPath.String()))
	}

	return &PageState{
		panel:    params.Config.PanelConfig,
		logger:   params.Logger.With(zap.String(logg.Layer, pageStateServiceName)),
		tracer:   otel.Tracer(pageStateTracer),
		page:     params.Page,
		farmPath: farmPath,
	}, nil
}

func (p *PageState) ReadReportStatus(ctx context.Context) entity.ReportStatus {
	const op = "ReadReportStatus"
	logger := p.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, p.tracer, logger, op)

	doc, err := p.snapshot(ctx)
	if err != nil {
		logger.Warn("Page snapshot failed, assuming no report sent", zap.Error(err))
		step.End(err)

		return entity.ReportStatus{}
	}

	status := reportStatusFrom(doc, p.panel.ReportCountLabel)
	step.SetAttributes(
		attribute.Bool("label_found", status.LabelFound),
		attribute.Int("report_count", status.ReportCount))
	step.End(nil)

	if !status.LabelFound {
		logger.Warn("Report count label not found, assuming no report sent",
			zap.String(logg.Label, p.panel.ReportCountLabel))

		return status
	}

	logger.Info("Report status read",
		zap.Int("report_count", status.ReportCount),
		zap.Bool("already_sent", status.AlreadySent))

	return status
}

func (p *PageState) ListNavigableResources(ctx context.Context) []entity.FarmEntry {
	const op = "ListNavigableResources"
	logger := p.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, p.tracer, logger, op)

	doc, err := p.snapshot(ctx)
	if err != nil {
		logger.Error("Page snapshot failed", zap.Error(err))
		step.End(err)

		return nil
	}

	base, _ := url.Parse(p.page.URL())

	farms := p.farmsFromAnchors(doc, base)
	source := "anchors"

	if len(farms) == 0 {
		farms = p.farmsFromRows(doc, base)
		source = "table_rows"
	}

	step.SetAttributes(attribute.Int("farms", len(farms)), attribute.String("source", source))
	step.End(nil)

	if len(farms) == 0 {
		logger.Warn("No navigable farms found on page", zap.String(logg.URL, p.page.URL()))

		return farms
	}

	logger.Info("Farms listed", zap.Int("count", len(farms)), zap.String("source", source))

	return farms
}

func (p *PageState) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := p.page.Content(ctx)
	if err != nil {
		return nil, err
	}

	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// reportStatusFrom looks for the label in table rows, then in definition
// lists, and reads the first purely numeric cell beside it.
func reportStatusFrom(doc *goquery.Document, label string) entity.ReportStatus {
	var status entity.ReportStatus

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.ChildrenFiltered("th, td")

		labelAt := -1
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if strings.Contains(cleanText(cell), label) {
				labelAt = i
				return false
			}
			return true
		})

		if labelAt < 0 {
			return true
		}

		status.LabelFound = true

		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i == labelAt {
				return true
			}
			if n, ok := parseCount(cleanText(cell)); ok {
				status.ReportCount = n
				return false
			}
			return true
		})

		return false
	})

	if !status.LabelFound {
		doc.Find("dt").EachWithBreak(func(_ int, term *goquery.Selection) bool {
			if !strings.Contains(cleanText(term), label) {
				return true
			}

			status.LabelFound = true
			if n, ok := parseCount(cleanText(term.NextFiltered("dd"))); ok {
				status.ReportCount = n
			}

			return false
		})
	}

	status.AlreadySent = status.ReportCount > 0

	return status
}

func (p *PageState) farmsFromAnchors(doc *goquery.Document, base *url.URL) []entity.FarmEntry {
	var farms []entity.FarmEntry
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")

		m := p.farmPath.FindStringSubmatch(href)
		if m == nil {
			return
		}

		name := cleanText(a)
		if name == "" {
			name, _ = a.Attr("title")
		}

		p.appendFarm(&farms, seen, base, href, strings.TrimSpace(name), m)
	})

	return farms
}

// farmsFromRows handles panels that render farms as clickable rows rather
// than anchors: the link lives in a row or cell attribute, or as cell text.
func (p *PageState) farmsFromRows(doc *goquery.Document, base *url.URL) []entity.FarmEntry {
	var farms []entity.FarmEntry
	seen := make(map[string]bool)

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 2 {
			return
		}

		link, match, linkCell := p.rowLink(row, cells)
		if match == nil {
			return
		}

		name := ""
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i != linkCell {
				name = cleanText(cell)
			}
			return name == ""
		})

		p.appendFarm(&farms, seen, base, link, name, match)
	})

	return farms
}

// rowLink finds the farm link of a row in a row attribute, then a cell
// attribute, then a cell's text. linkCell is the index of that text cell,
// or -1 when the link came from an attribute.
func (p *PageState) rowLink(row, cells *goquery.Selection) (link string, match []string, linkCell int) {
	sources := []*goquery.Selection{row}
	cells.Each(func(_ int, cell *goquery.Selection) { sources = append(sources, cell) })

	for _, sel := range sources {
		for _, attr := range linkAttrs {
			if v, ok := sel.Attr(attr); ok {
				if link = p.farmPath.FindString(v); link != "" {
					return link, p.farmPath.FindStringSubmatch(link), -1
				}
			}
		}
	}

	for i, cell := range sources[1:] {
		if link = p.farmPath.FindString(cleanText(cell)); link != "" {
			return link, p.farmPath.FindStringSubmatch(link), i
		}
	}

	return "", nil, -1
}

func (p *PageState) appendFarm(farms *[]entity.FarmEntry, seen map[string]bool, base *url.URL, href, name string, match []string) {
	abs := href
	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			abs = base.ResolveReference(ref).String()
		}
	}

	if seen[abs] {
		return
	}
	seen[abs] = true

	*farms = append(*farms, entity.FarmEntry{
		Name:      name,
		URL:       abs,
		FarmID:    match[1],
		SectionID: match[2],
	})
}

func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func parseCount(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if !numericCell.MatchString(text) {
		return 0, false
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}

	return n, true
}
