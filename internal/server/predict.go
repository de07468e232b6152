package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
)

const maxBatchSize = 500

// customerID accepts a snowflake id as either a JSON number or a string.
type customerID string

func (c *customerID) UnmarshalJSON(data []byte) error {
	*c = customerID(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

func (c customerID) parse() (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(string(c)))
	if err != nil {
		return 0, customerdomain.ErrInvalidID
	}
	return id, nil
}

// predictRequest accepts a single customer or a batch. Exactly one of the
// two fields must be set.
type predictRequest struct {
	CustomerID  customerID   `json:"customer_id"`
	CustomerIDs []customerID `json:"customer_ids"`
}

func (r predictRequest) ids() ([]snowflake.ID, bool, error) {
	single := strings.TrimSpace(string(r.CustomerID)) != ""
	if single == (len(r.CustomerIDs) > 0) {
		return nil, false, ErrInvalidRequest
	}
	if single {
		id, err := r.CustomerID.parse()
		if err != nil {
			return nil, false, err
		}
		return []snowflake.ID{id}, true, nil
	}

	if len(r.CustomerIDs) > maxBatchSize {
		return nil, false, ErrInvalidRequest
	}
	ids := make([]snowflake.ID, 0, len(r.CustomerIDs))
	for _, raw := range r.CustomerIDs {
		id, err := raw.parse()
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, id)
	}
	return ids, false, nil
}

// batchErrorItem stands in for a prediction when one id fails; successful
// items are the prediction payloads themselves.
type batchErrorItem struct {
	CustomerID snowflake.ID `json:"customer_id"`
	Error      string       `json:"error"`
}

func (s *Server) PredictChurn(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	ids, single, err := req.ids()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if single {
		pred, err := s.predictionSvc.PredictChurn(c.Request.Context(), ids[0])
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": pred})
		return
	}

	items, err := s.predictionSvc.PredictChurnBatch(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp := make([]any, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			resp = append(resp, batchErrorItem{CustomerID: item.CustomerID, Error: mapBatchError(item.Err)})
			continue
		}
		resp = append(resp, item.Prediction)
	}
	c.JSON(http.StatusOK, gin.H{"predictions": resp})
}

func (s *Server) PredictCLV(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	ids, single, err := req.ids()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if single {
		pred, err := s.predictionSvc.PredictCLV(c.Request.Context(), ids[0])
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": pred})
		return
	}

	items, err := s.predictionSvc.PredictCLVBatch(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp := make([]any, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			resp = append(resp, batchErrorItem{CustomerID: item.CustomerID, Error: mapBatchError(item.Err)})
			continue
		}
		resp = append(resp, item.Prediction)
	}
	c.JSON(http.StatusOK, gin.H{"predictions": resp})
}

// mapBatchError keeps per-item failures terse and free of internals.
func mapBatchError(err error) string {
	_, payload := mapError(err)
	return payload.Type
}
