// internal/services/search/indexer.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"loanassist/internal/common/config"
	"loanassist/internal/common/database"
	"loanassist/internal/common/logger"
	"loanassist/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultIndex = "loan_applications"

// ApplicationGetter loads the current application snapshot for indexing.
type ApplicationGetter interface {
	GetByID(ctx context.Context, id int64) (*models.LoanApplication, error)
}

// Indexer mirrors application snapshots into Elasticsearch. Indexing is
// best effort: any failure is logged and swallowed so the conversational
// turn is never affected.
type Indexer struct {
	es     *database.ElasticsearchClient
	apps   ApplicationGetter
	index  string
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, apps ApplicationGetter, cfg config.ElasticsearchConfig, log logger.Logger) *Indexer {
	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}
	return &Indexer{
		es:     es,
		apps:   apps,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"collaborator": "search"}),
	}
}

// PublishApplicationEvent reindexes the application on every lifecycle
// event. Satisfies the engine's event publisher hook.
func (i *Indexer) PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, _ map[string]interface{}) {
	app, err := i.apps.GetByID(ctx, applicationID)
	if err != nil || app == nil {
		i.logger.Warn("skipping index refresh, application load failed", map[string]interface{}{
			"applicationId": applicationID, "event": eventType,
		})
		return
	}
	i.IndexApplication(ctx, app)
}

// IndexApplication upserts one application document.
func (i *Indexer) IndexApplication(ctx context.Context, app *models.LoanApplication) {
	if i.es == nil || i.es.Client == nil {
		return
	}

	body, err := json.Marshal(indexDocument(app))
	if err != nil {
		i.logger.Error("marshaling index document failed", map[string]interface{}{
			"applicationId": app.ID, "error": err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(app.ID, 10),
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.es.Client)
	if err != nil {
		i.logger.Warn("index request failed", map[string]interface{}{
			"applicationId": app.ID, "error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("index request rejected", map[string]interface{}{
			"applicationId": app.ID, "status": res.Status(),
		})
	}
}

func indexDocument(app *models.LoanApplication) map[string]interface{} {
	doc := map[string]interface{}{
		"id":         app.ID,
		"status":     app.Status,
		"created_at": app.CreatedAt,
		"updated_at": app.UpdatedAt,
		"indexed_at": time.Now().UTC(),
	}
	for k, v := range app.FieldMap() {
		doc[k] = v
	}
	if app.EligibilityStatus != "" {
		doc["eligibility_status"] = app.EligibilityStatus
		doc["eligibility_score"] = app.EligibilityScore
		doc["risk_level"] = app.RiskLevel
	}
	if app.ApprovalStatus != "" {
		doc["approval_status"] = app.ApprovalStatus
	}
	return doc
}
