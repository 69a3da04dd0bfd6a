package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"lashclub/internal/config"
	"lashclub/internal/email"
	"lashclub/internal/membership"
	"lashclub/internal/models"
	"lashclub/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Server struct {
	svc         *services.Service
	cfg         config.Config
	emailClient *email.ResendClient
}

func NewServer(svc *services.Service, cfg config.Config) *Server {
	emailClient := email.NewResendClient(cfg.ResendAPIKey)
	return &Server{svc: svc, cfg: cfg, emailClient: emailClient}
}

// loggingRecoverer records panics with the request id and a stack before
// answering 500.
func loggingRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				reqID := middleware.GetReqID(r.Context())
				log.Printf("[ERROR] [%s] Panic recovered in %s %s: %v\n%s",
					reqID, r.Method, r.URL.Path, rvr, debug.Stack())

				if r.Header.Get("Connection") != "Upgrade" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					errMsg := fmt.Sprintf("internal server error: %v", rvr)
					_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg})
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			reqID := middleware.GetReqID(r.Context())
			log.Printf("[%s] %s %s %d %s",
				reqID, r.Method, r.URL.Path, ww.Status(), time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingRecoverer)
	r.Use(requestLogger)
	r.Use(metricsMiddleware)
	r.Use(s.corsMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/google", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)
		r.Post("/users", s.handleCreateUser)
		r.Get("/tiers", s.handleListTiers)
		r.Get("/services", s.handleListServices)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		// Authenticated member endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.jwtMiddleware)

			r.Get("/users/{id}", s.handleGetUser)
			r.Get("/users/{id}/membership", s.handleGetMembership)
			r.Get("/users/{id}/points", s.handleGetPoints)
			r.Get("/users/{id}/points/history", s.handleGetPointsHistory)
			r.Get("/users/{id}/bookings", s.handleListBookings)

			r.Post("/quotes/service", s.handleQuoteService)

			r.Post("/bookings", s.handleCreateBooking)
			r.Get("/bookings/{id}", s.handleGetBooking)
			r.Post("/bookings/{id}/cancel", s.handleCancelBooking)

			r.Post("/memberships/checkout", s.handleMembershipCheckout)
			r.Post("/memberships/cancel", s.handleCancelMembership)

			r.Post("/orders/checkout", s.handleOrderCheckout)
			r.Get("/orders/{id}", s.handleGetOrder)
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.jwtMiddleware)
			r.Use(s.adminMiddleware)

			r.Get("/users", s.handleAdminListUsers)
			r.Patch("/users/{id}/role", s.handleAdminUpdateUserRole)
			r.Patch("/users/{id}/status", s.handleAdminUpdateUserStatus)
			r.Post("/users/{id}/usage/reset", s.handleAdminResetUsage)
			r.Post("/users/{id}/points/adjust", s.handleAdminAdjustPoints)
			r.Put("/tiers/{id}", s.handleAdminUpdateTier)
			r.Post("/bookings/{id}/complete", s.handleAdminCompleteBooking)
			r.Get("/stats", s.handleAdminGetStats)
		})
	})

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ========== Auth & users ==========

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	user, err := s.svc.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, err)
		case errors.Is(err, services.ErrUserDisabled):
			respondError(w, http.StatusForbidden, err)
		default:
			s.respondServiceError(w, err)
		}
		return
	}
	token, err := s.generateJWT(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	user, err := s.svc.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !canAccessUser(r.Context(), id) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	user, err := s.svc.GetUserByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ========== Catalog ==========

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.svc.ListTiers(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tiers)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListServices(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// ========== Membership & points queries ==========

func (s *Server) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !canAccessUser(r.Context(), userID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	m, err := s.svc.GetMembershipForUser(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	m, err = s.svc.ResetUsageIfStale(r.Context(), m)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	tiers, err := s.svc.ListTiers(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	benefits := membership.BenefitsForTier(m.TierID, tiers)
	respondJSON(w, http.StatusOK, map[string]any{
		"membership": m,
		"benefits":   benefits,
		"remaining":  membership.RemainingFreeServices(benefits, m.Usage()),
	})
}

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !canAccessUser(r.Context(), userID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	acct, err := s.svc.GetPointsAccount(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"balance":         acct.Balance,
		"lifetime_earned": acct.LifetimeEarned,
		"can_redeem":      s.svc.Policy().CanRedeem(acct.Balance),
	})
}

func (s *Server) handleGetPointsHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !canAccessUser(r.Context(), userID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	entries, err := s.svc.ListLedger(r.Context(), userID, limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ========== Quotes & bookings ==========

type quoteServiceRequest struct {
	UserID    int64  `json:"user_id"`
	ServiceID string `json:"service_id"`
}

func (s *Server) handleQuoteService(w http.ResponseWriter, r *http.Request) {
	var req quoteServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 || req.ServiceID == "" {
		respondError(w, http.StatusBadRequest, errors.New("user_id and service_id are required"))
		return
	}
	if !canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	quote, err := s.svc.QuoteService(r.Context(), req.UserID, req.ServiceID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

type createBookingRequest struct {
	UserID         int64     `json:"user_id"`
	ServiceID      string    `json:"service_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	PointsToRedeem int       `json:"points_to_redeem"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 || req.ServiceID == "" || req.ScheduledAt.IsZero() {
		respondError(w, http.StatusBadRequest, errors.New("user_id, service_id and scheduled_at are required"))
		return
	}
	if !canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	booking, err := s.svc.CreateBooking(r.Context(), req.UserID, req.ServiceID, req.ScheduledAt, req.PointsToRedeem)
	if err != nil {
		log.Printf("[ERROR] [%s] Failed to create booking for user %d: %v", reqID, req.UserID, err)
		s.respondServiceError(w, err)
		return
	}
	log.Printf("[INFO] [%s] Created booking: id=%d, service=%s, charged=%d cents",
		reqID, booking.ID, booking.ServiceID, booking.ChargedCents)

	s.sendBookingConfirmation(r.Context(), booking)
	respondJSON(w, http.StatusCreated, booking)
}

func (s *Server) sendBookingConfirmation(ctx context.Context, booking models.Booking) {
	if !s.emailClient.IsConfigured() || s.cfg.FromEmail == "" {
		return
	}
	user, err := s.svc.GetUserByID(ctx, booking.UserID)
	if err != nil {
		return
	}
	svc, err := s.svc.GetService(ctx, booking.ServiceID)
	if err != nil {
		return
	}
	// Email failures never fail the booking.
	if err := s.emailClient.SendBookingConfirmation(s.cfg.FromEmail, user.Email, svc.Name, booking); err != nil {
		log.Printf("[ERROR] Failed to send booking confirmation for booking %d: %v", booking.ID, err)
	}
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	booking, err := s.svc.GetBooking(r.Context(), bookingID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !canAccessUser(r.Context(), booking.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	booking, err := s.svc.GetBooking(r.Context(), bookingID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !canAccessUser(r.Context(), booking.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	booking, err = s.svc.CancelBooking(r.Context(), bookingID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !canAccessUser(r.Context(), userID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	bookings, err := s.svc.ListBookings(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// ========== Stripe checkout ==========

type membershipCheckoutRequest struct {
	UserID     int64  `json:"user_id"`
	TierID     string `json:"tier_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Server) handleMembershipCheckout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	if s.cfg.StripeSecretKey == "" {
		s.respondServiceError(w, services.ErrStripeNotConfigured)
		return
	}
	var req membershipCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 || req.TierID == "" || req.SuccessURL == "" || req.CancelURL == "" {
		respondError(w, http.StatusBadRequest, errors.New("user_id, tier_id, success_url, cancel_url are required"))
		return
	}
	if !canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}

	tier, err := s.svc.GetTier(r.Context(), req.TierID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if tier.StripePriceID == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("tier %s has no stripe price configured", tier.ID))
		return
	}

	m, err := s.svc.CreatePendingMembership(r.Context(), req.UserID, tier.ID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	log.Printf("[INFO] [%s] Created pending membership: id=%d, tier=%s", reqID, m.ID, tier.ID)

	stripe.Key = s.cfg.StripeSecretKey
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(m.ID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(tier.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"membership_id": strconv.FormatInt(m.ID, 10),
			"user_id":       strconv.FormatInt(req.UserID, 10),
			"tier_id":       tier.ID,
		},
	}
	sess, err := session.New(params)
	if err != nil {
		s.respondStripeError(w, reqID, err)
		return
	}
	log.Printf("[INFO] [%s] Stripe session created: id=%s", reqID, sess.ID)

	respondJSON(w, http.StatusCreated, map[string]any{
		"membership_id":  m.ID,
		"stripe_session": sess.ID,
		"checkout_url":   sess.URL,
	})
}

type cancelMembershipRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) handleCancelMembership(w http.ResponseWriter, r *http.Request) {
	var req cancelMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	if !canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	if err := s.svc.CancelMembership(r.Context(), req.UserID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orderCheckoutRequest struct {
	UserID      int64  `json:"user_id"`
	ProductName string `json:"product_name"`
	PriceCents  int    `json:"price_cents"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

func (s *Server) handleOrderCheckout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	if s.cfg.StripeSecretKey == "" {
		s.respondServiceError(w, services.ErrStripeNotConfigured)
		return
	}
	var req orderCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 || req.ProductName == "" || req.PriceCents <= 0 || req.SuccessURL == "" || req.CancelURL == "" {
		respondError(w, http.StatusBadRequest, errors.New("user_id, product_name, price_cents, success_url, cancel_url are required"))
		return
	}
	if !canAccessUser(r.Context(), req.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}

	order, err := s.svc.CreateProductOrder(r.Context(), req.UserID, req.ProductName, req.PriceCents)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	log.Printf("[INFO] [%s] Created product order: id=%d, amount=%d cents (discount %d%%)",
		reqID, order.ID, order.AmountCents, order.DiscountPercent)

	stripe.Key = s.cfg.StripeSecretKey
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(order.ID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.StripeCurrency),
					UnitAmount: stripe.Int64(int64(order.AmountCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(order.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"user_id":  strconv.FormatInt(req.UserID, 10),
		},
	}
	sess, err := session.New(params)
	if err != nil {
		s.respondStripeError(w, reqID, err)
		return
	}
	if err := s.svc.LinkOrderSession(r.Context(), order.ID, sess.ID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id":       order.ID,
		"stripe_session": sess.ID,
		"checkout_url":   sess.URL,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	order, err := s.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !canAccessUser(r.Context(), order.UserID) {
		respondError(w, http.StatusForbidden, errors.New("access denied"))
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ========== Stripe webhook ==========

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StripeWebhookSecret == "" {
		s.respondServiceError(w, services.ErrStripeNotConfigured)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, s.cfg.StripeWebhookSecret)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.processCheckoutSession(r.Context(), &sess); err != nil {
			s.respondServiceError(w, err)
			return
		}
	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.processInvoicePaid(r.Context(), &inv); err != nil {
			s.respondServiceError(w, err)
			return
		}
	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if inv.Subscription != nil && inv.Subscription.ID != "" {
			if err := s.svc.MarkMembershipPastDue(r.Context(), inv.Subscription.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
				s.respondServiceError(w, err)
				return
			}
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.svc.CancelMembershipByStripeID(r.Context(), sub.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
			s.respondServiceError(w, err)
			return
		}
	default:
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) processCheckoutSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	if membershipID := sess.Metadata["membership_id"]; membershipID != "" {
		id, err := strconv.ParseInt(membershipID, 10, 64)
		if err != nil {
			return err
		}
		return s.activateMembershipFromSession(ctx, id, sess)
	}

	var order models.Order
	var err error
	if orderID := sess.Metadata["order_id"]; orderID != "" {
		if id, parseErr := strconv.ParseInt(orderID, 10, 64); parseErr == nil {
			order, err = s.svc.GetOrder(ctx, id)
		}
	}
	if err != nil || order.ID == 0 {
		order, err = s.svc.GetOrderByStripeSessionID(ctx, sess.ID)
	}
	if err != nil {
		return err
	}
	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}
	_, err = s.svc.MarkOrderPaid(ctx, order.ID, sess.ID, paymentIntentID)
	return err
}

func (s *Server) activateMembershipFromSession(ctx context.Context, membershipID int64, sess *stripe.CheckoutSession) error {
	m, err := s.svc.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if m.Status == models.MembershipActive && m.CurrentPeriodEnd != nil && m.CurrentPeriodEnd.After(time.Now().UTC()) {
		return nil
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}
	periodEnd := time.Now().UTC().AddDate(0, 1, 0)
	if err := s.svc.ActivateMembership(ctx, membershipID, customerID, subscriptionID, periodEnd); err != nil {
		return err
	}
	s.sendMembershipWelcome(ctx, m.UserID, m.TierID)
	return nil
}

func (s *Server) sendMembershipWelcome(ctx context.Context, userID int64, tierID string) {
	if !s.emailClient.IsConfigured() || s.cfg.FromEmail == "" {
		return
	}
	user, err := s.svc.GetUserByID(ctx, userID)
	if err != nil {
		return
	}
	tier, err := s.svc.GetTier(ctx, tierID)
	if err != nil {
		return
	}
	if err := s.emailClient.SendMembershipWelcome(s.cfg.FromEmail, user.Email, tier.Name); err != nil {
		log.Printf("[ERROR] Failed to send membership welcome to user %d: %v", userID, err)
	}
}

func (s *Server) processInvoicePaid(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return nil
	}
	m, err := s.svc.GetMembershipByStripeID(ctx, inv.Subscription.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil
		}
		return err
	}
	// First invoice arrives alongside checkout.session.completed; skip when
	// the period was just opened.
	if m.CurrentPeriodEnd != nil && m.CurrentPeriodEnd.After(time.Now().UTC().Add(time.Hour)) {
		return nil
	}
	periodEnd := time.Now().UTC().AddDate(0, 1, 0)
	return s.svc.RenewMembership(ctx, inv.Subscription.ID, periodEnd)
}

// ========== Admin handlers ==========

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	users, total, err := s.svc.ListUsers(r.Context(), page, pageSize)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type updateUserRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleAdminUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req updateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		respondError(w, http.StatusBadRequest, errors.New("role is required"))
		return
	}
	if err := s.svc.UpdateUserRole(r.Context(), userID, req.Role); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateUserStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleAdminUpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req updateUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, errors.New("status is required"))
		return
	}
	if err := s.svc.UpdateUserStatus(r.Context(), userID, req.Status); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminResetUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.svc.AdminResetUsage(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

type adjustPointsRequest struct {
	Delta       int    `json:"delta"`
	Description string `json:"description"`
}

func (s *Server) handleAdminAdjustPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req adjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, errors.New("delta must be non-zero"))
		return
	}
	if req.Description == "" {
		req.Description = "Manual adjustment"
	}
	if err := s.svc.AdminAdjustPoints(r.Context(), userID, req.Delta, req.Description); err != nil {
		s.respondServiceError(w, err)
		return
	}
	acct, err := s.svc.GetPointsAccount(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

func (s *Server) handleAdminUpdateTier(w http.ResponseWriter, r *http.Request) {
	tierID := chi.URLParam(r, "id")
	if tierID == "" {
		respondError(w, http.StatusBadRequest, errors.New("tier id is required"))
		return
	}
	var tier models.Tier
	if err := json.NewDecoder(r.Body).Decode(&tier); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	tier.ID = tierID
	if err := s.svc.UpdateTier(r.Context(), tier); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tier)
}

func (s *Server) handleAdminCompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	booking, err := s.svc.CompleteBooking(r.Context(), bookingID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (s *Server) handleAdminGetStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.svc.GetStats(r.Context(), from, to)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ========== Error mapping & helpers ==========

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, services.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrEmailAlreadyExists):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrInsufficientPoints):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrRedemptionTooSmall):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrRedemptionCapped):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrQuotaExhausted):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrBookingNotOpen):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrMembershipNotActive):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, services.ErrUserDisabled):
		respondError(w, http.StatusForbidden, err)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err)
	case errors.Is(err, services.ErrStripeNotConfigured):
		respondError(w, http.StatusServiceUnavailable, err)
	default:
		log.Printf("[ERROR] Internal server error: %v", err)
		respondError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) respondStripeError(w http.ResponseWriter, reqID string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Printf("[ERROR] [%s] Stripe API error: type=%s, code=%s, message=%s, param=%s",
			reqID, stripeErr.Type, stripeErr.Code, stripeErr.Msg, stripeErr.Param)
		respondError(w, http.StatusBadRequest,
			fmt.Errorf("stripe error: %s - %s", stripeErr.Code, stripeErr.Msg))
		return
	}
	log.Printf("[ERROR] [%s] Failed to create Stripe session: %v", reqID, err)
	respondError(w, http.StatusInternalServerError, err)
}

func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("id is required")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		return now.Add(-30 * 24 * time.Hour), now, nil
	}
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required together")
	}
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	return page, pageSize
}
