package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/mail"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/domain"
	"github.com/letter4ceo/morning-letter/pkg/stibee"
)

// subscriberRequest carries the subscriber fields accepted on signup
type subscriberRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Company       string `json:"company"`
	Position      string `json:"position"`
	PrivacyAgreed bool   `json:"privacy_agreed"`
}

// subscribeHandler registers a new recipient and mirrors it into the provider
// list. An existing unsubscribed address is re-activated instead.
func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		renderBadRequest(w, r, "valid email is required")
		return
	}
	if !req.PrivacyAgreed {
		renderBadRequest(w, r, "privacy agreement is required")
		return
	}

	if existing, err := s.subscribers.GetSubscriberByEmail(ctx, req.Email); err == nil {
		if existing.Status == domain.SubscriberActive {
			renderBadRequest(w, r, "already subscribed")
			return
		}
		if err := s.subscribers.UpdateStatus(ctx, req.Email, domain.SubscriberActive); err != nil {
			renderError(w, r, err)
			return
		}
		s.mirrorToProvider(ctx, existing)
		renderMessage(w, r, http.StatusOK, existing, "subscription re-activated")
		return
	}

	now := time.Now()
	sub := &domain.Subscriber{
		Email:           req.Email,
		Name:            req.Name,
		Phone:           req.Phone,
		Company:         req.Company,
		Position:        req.Position,
		Status:          domain.SubscriberActive,
		PrivacyAgreed:   true,
		PrivacyAgreedAt: &now,
	}
	if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
		renderError(w, r, err)
		return
	}
	s.mirrorToProvider(ctx, sub)

	renderMessage(w, r, http.StatusCreated, sub, "subscribed")
}

// unsubscribeHandler deactivates a recipient locally and removes it from the
// provider list
func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if req.Email == "" {
		renderBadRequest(w, r, "email is required")
		return
	}

	if err := s.subscribers.UpdateStatus(ctx, req.Email, domain.SubscriberUnsubscribed); err != nil {
		renderError(w, r, err)
		return
	}
	if err := s.mailer.DeleteSubscriber(ctx, req.Email); err != nil {
		log.Printf("[WARN] failed to remove %s from provider list: %v", req.Email, err)
	}

	renderMessage(w, r, http.StatusOK, nil, "unsubscribed")
}

// listSubscribersHandler returns subscribers with status/search filters
func (s *Server) listSubscribersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := domain.SubscriberFilter{
		Status: domain.SubscriberStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	subscribers, err := s.subscribers.ListSubscribers(ctx, filter)
	if err != nil {
		renderError(w, r, err)
		return
	}
	total, err := s.subscribers.CountSubscribers(ctx, filter)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderSuccess(w, r, http.StatusOK, map[string]any{
		"subscribers": subscribers,
		"total":       total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// createSubscriberHandler adds a subscriber through the admin surface, consent
// is recorded as given at entry time
func (s *Server) createSubscriberHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		renderBadRequest(w, r, "valid email is required")
		return
	}

	now := time.Now()
	sub := &domain.Subscriber{
		Email:         req.Email,
		Name:          req.Name,
		Phone:         req.Phone,
		Company:       req.Company,
		Position:      req.Position,
		Status:        domain.SubscriberActive,
		PrivacyAgreed: req.PrivacyAgreed,
	}
	if req.PrivacyAgreed {
		sub.PrivacyAgreedAt = &now
	}
	if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
		renderError(w, r, err)
		return
	}
	s.mirrorToProvider(ctx, sub)

	renderSuccess(w, r, http.StatusCreated, sub)
}

// deleteSubscriberHandler removes a subscriber locally and from the provider
func (s *Server) deleteSubscriberHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sub, err := s.subscribers.GetSubscriber(ctx, id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := s.subscribers.DeleteSubscriber(ctx, id); err != nil {
		renderError(w, r, err)
		return
	}
	if err := s.mailer.DeleteSubscriber(ctx, sub.Email); err != nil {
		log.Printf("[WARN] failed to remove %s from provider list: %v", sub.Email, err)
	}

	renderMessage(w, r, http.StatusOK, nil, "subscriber deleted")
}

// syncSubscribersHandler pushes every active local subscriber into the
// provider list
func (s *Server) syncSubscribersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	active, err := s.subscribers.ActiveSubscribers(ctx)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if len(active) == 0 {
		renderMessage(w, r, http.StatusOK, map[string]int{"synced": 0}, "no active subscribers")
		return
	}

	batch := make([]stibee.Subscriber, len(active))
	for i, sub := range active {
		batch[i] = stibee.Subscriber{Email: sub.Email, Name: sub.Name, Company: sub.Company, Position: sub.Position}
	}
	result, err := s.mailer.AddSubscribers(ctx, batch)
	if err != nil {
		renderError(w, r, err)
		return
	}

	renderMessage(w, r, http.StatusOK, map[string]int{
		"synced":  len(result.Success),
		"updated": len(result.Update),
		"failed":  len(result.Fail),
	}, "subscriber sync completed")
}

// importSubscribersHandler pulls the provider list page by page and stores
// addresses missing locally
func (s *Server) importSubscribersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.mailer.IsConfigured() {
		renderBadRequest(w, r, "email provider not configured")
		return
	}

	const pageSize = 100
	imported := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.mailer.GetSubscribers(ctx, offset, pageSize)
		if err != nil {
			renderError(w, r, err)
			return
		}
		if len(page) == 0 {
			break
		}

		for _, remote := range page {
			if _, err := s.subscribers.GetSubscriberByEmail(ctx, remote.Email); err == nil {
				continue
			}
			sub := &domain.Subscriber{
				Email:    remote.Email,
				Name:     remote.Name,
				Company:  remote.Company,
				Position: remote.Position,
				Status:   domain.SubscriberActive,
			}
			if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
				log.Printf("[WARN] failed to import %s: %v", remote.Email, err)
				continue
			}
			imported++
		}

		if len(page) < pageSize {
			break
		}
	}

	renderMessage(w, r, http.StatusOK, map[string]int{"imported": imported}, "subscriber import completed")
}

// subscriberStatsHandler returns per-status subscriber counts
func (s *Server) subscriberStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.subscribers.Stats(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderSuccess(w, r, http.StatusOK, stats)
}

// mirrorToProvider upserts one subscriber into the provider list, mirror
// failures are logged and never block the local write
func (s *Server) mirrorToProvider(ctx context.Context, sub *domain.Subscriber) {
	_, err := s.mailer.AddSubscribers(ctx, []stibee.Subscriber{{
		Email:    sub.Email,
		Name:     sub.Name,
		Company:  sub.Company,
		Position: sub.Position,
	}})
	if err != nil {
		log.Printf("[WARN] failed to mirror %s to provider list: %v", sub.Email, err)
	}
}
