package api

import (
	"net/http"
	"net/url"

	"github.com/jogardn/laptop-store/pkg/models"
)

type (
	LaptopRepository   = Repository[models.Laptop, models.LaptopInput, models.LaptopPatch, models.LaptopFilter]
	CustomerRepository = Repository[models.Customer, models.CustomerInput, models.CustomerPatch, models.CustomerFilter]
	CartRepository     = Repository[models.Cart, models.CartInput, models.CartPatch, models.CartFilter]
	OrderRepository    = Repository[models.Order, models.OrderInput, models.OrderPatch, models.OrderFilter]
)

const laptopImageField = "L_IMAGE"

func laptopFilter(q url.Values) models.LaptopFilter {
	return models.LaptopFilter{
		Brand:      q.Get("L_BRAND"),
		Name:       q.Get("L_NAME"),
		Model:      q.Get("L_MODEL"),
		CPU:        q.Get("L_CPU"),
		RAM:        q.Get("L_RAM"),
		Storage:    q.Get("L_STORAGE"),
		GPU:        q.Get("L_GPU"),
		ScreenSize: q.Get("L_SCREEN_SIZE"),
		Weight:     q.Get("L_WEIGHT"),
	}
}

func laptopPatchFromForm(v url.Values) (models.LaptopPatch, error) {
	f := formReader{values: v}
	p := models.LaptopPatch{
		Brand:       f.string("L_BRAND"),
		Name:        f.string("L_NAME"),
		Model:       f.string("L_MODEL"),
		Price:       f.decimal("L_PRICE"),
		CPU:         f.string("L_CPU"),
		RAM:         f.string("L_RAM"),
		Storage:     f.string("L_STORAGE"),
		GPU:         f.string("L_GPU"),
		ScreenSize:  f.string("L_SCREEN_SIZE"),
		Weight:      f.string("L_WEIGHT"),
		Description: f.string("L_DESCRIPTION"),
		Quantity:    f.int("L_QUANTITY"),
	}
	return p, f.err()
}

// laptopImage saves an uploaded L_IMAGE part and points the patch at it.
func laptopImage(uploads Uploader) func(*http.Request, *models.LaptopPatch) (string, error) {
	return func(r *http.Request, p *models.LaptopPatch) (string, error) {
		fh := formFile(r, laptopImageField)
		if fh == nil || uploads == nil {
			return "", nil
		}
		publicPath, err := uploads.Save(fh)
		if err != nil {
			return "", err
		}
		p.Image = &publicPath
		return publicPath, nil
	}
}

func customerFilter(q url.Values) models.CustomerFilter {
	return models.CustomerFilter{
		Name:  q.Get("C_NAME"),
		Email: q.Get("C_EMAIL"),
		Phone: q.Get("C_PHONE"),
		Role:  q.Get("C_ROLE"),
	}
}

func customerPatchFromForm(v url.Values) (models.CustomerPatch, error) {
	f := formReader{values: v}
	p := models.CustomerPatch{
		Name:     f.string("C_NAME"),
		Email:    f.string("C_EMAIL"),
		Password: f.string("C_PASSWORD"),
		Phone:    f.string("C_PHONE"),
		Role:     f.string("C_ROLE"),
	}
	return p, f.err()
}

func cartFilter(q url.Values) models.CartFilter {
	return models.CartFilter{
		CustomerID: q.Get("C_ID"),
		LaptopID:   q.Get("L_ID"),
		Date:       q.Get("CAR_DATE"),
	}
}

func cartPatchFromForm(v url.Values) (models.CartPatch, error) {
	f := formReader{values: v}
	p := models.CartPatch{
		CustomerID: f.int64("C_ID"),
		LaptopID:   f.int64("L_ID"),
		Date:       f.date("CAR_DATE"),
		Quantity:   f.int("CAR_QUANTITY"),
	}
	return p, f.err()
}

func orderFilter(q url.Values) models.OrderFilter {
	return models.OrderFilter{
		ID:   q.Get("O_ID"),
		Date: q.Get("O_DATE"),
	}
}

func orderPatchFromForm(v url.Values) (models.OrderPatch, error) {
	f := formReader{values: v}
	p := models.OrderPatch{
		Date:            f.date("O_DATE"),
		Total:           f.decimal("O_TOTAL"),
		ShippingAddress: f.string("O_SHIPPING_ADDRESS"),
	}
	return p, f.err()
}
