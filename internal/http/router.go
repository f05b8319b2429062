package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
}

// NewRouter mounts the storefront and admin routes. Global middleware such as
// timeouts and tracing is added by the caller.
func NewRouter(h Handlers, log *zap.Logger, maxBodySize int64) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if maxBodySize > 0 {
		r.Use(MaxBodySize(maxBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.ListProducts)
			r.Get("/{id}", h.Products.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})
			r.Post("/checkout", h.Checkout.PlaceOrder)
		})

		r.Get("/orders/{order_id}", h.Orders.GetOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/inventory", h.Admin.Inventory)
			r.Post("/products", h.Admin.CreateProduct)
			r.Put("/products/{id}", h.Admin.UpdateProduct)
			r.Delete("/products/{id}", h.Admin.DeleteProduct)
			r.Post("/stock/{id}/add", h.Admin.AddStock)
			r.Post("/stock/{id}/remove", h.Admin.RemoveStock)
			r.Get("/stock/{id}/history", h.Admin.StockHistory)
			r.Get("/orders", h.Orders.ListOrders)
			r.Put("/orders/{order_id}/status", h.Orders.UpdateStatus)
		})
	})

	return r
}
