package billing

import (
	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
)

// BuildBill sums open orders given in creation order. The discount
// percentage shown is the first order's; amounts are summed per order since
// each order carries its own discount.
func BuildBill(tableName string, orders []*models.Order, taxRate decimal.Decimal) *models.Bill {
	bill := &models.Bill{
		TableName:          tableName,
		OrderIDs:           make([]string, 0, len(orders)),
		Items:              []models.OrderItem{},
		Subtotal:           decimal.Zero,
		DiscountPercentage: decimal.Zero,
		DiscountAmount:     decimal.Zero,
		TotalAfterDiscount: decimal.Zero,
		TaxRate:            taxRate,
	}
	if len(orders) > 0 {
		bill.DiscountPercentage = orders[0].DiscountPercentage
	}

	for _, o := range orders {
		bill.OrderIDs = append(bill.OrderIDs, o.ID)
		bill.Items = append(bill.Items, o.Items...)
		bill.Subtotal = bill.Subtotal.Add(o.Subtotal)
		bill.DiscountAmount = bill.DiscountAmount.Add(o.DiscountAmount)
		bill.TotalAfterDiscount = bill.TotalAfterDiscount.Add(o.Total)
	}

	bill.Tax = models.RoundMoney(bill.TotalAfterDiscount.Mul(taxRate))
	bill.Total = models.RoundMoney(bill.TotalAfterDiscount.Add(bill.Tax))
	return bill
}
