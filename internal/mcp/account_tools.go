package mcp

import (
	"context"
	"fmt"

	"github.com/dhofer/mcp-server-kontomanager/internal/portal"
)

type GetAccountUsageTool struct {
	client *portal.Client
}

func (t *GetAccountUsageTool) Name() string { return "get_account_usage" }
func (t *GetAccountUsageTool) Description() string {
	return `Retrieve the account overview for the active phone number: plan and package
usage (minutes/SMS, domestic and EU data), credit balance on prepaid
accounts, current costs and the next bill date.

Always fetched fresh from the portal, never cached. German-formatted
quantities are normalized to plain numbers with explicit units; unlimited
quotas carry "unlimited": true.

Returns: AccountUsage record.`
}
func (t *GetAccountUsageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetAccountUsageTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.GetAccountUsage(ctx)
}

type GetPhoneNumbersTool struct {
	client *portal.Client
}

func (t *GetPhoneNumbersTool) Name() string { return "get_phone_numbers" }
func (t *GetPhoneNumbersTool) Description() string {
	return `List all phone numbers in the account group.

USE THIS FIRST before switch_active_phone_number: the subscriber_id values
it needs come from here. The currently active number is flagged is_active
and carries no subscriber_id (the portal only exposes ids for switchable
numbers).

Returns: Array of {name, number, subscriber_id, is_active}.`
}
func (t *GetPhoneNumbersTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetPhoneNumbersTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.GetPhoneNumbers(ctx)
}

type ListBillsTool struct {
	client *portal.Client
}

func (t *ListBillsTool) Name() string { return "list_bills" }
func (t *ListBillsTool) Description() string {
	return `List available bills for the active number, most recent first.

This tool does NOT download bill PDFs; it only lists metadata (number, date,
amount, whether an itemized record is available). Use download_bill to fetch
the actual document.

Returns: Array of {bill_number, date, amount, currency, has_egn, ...}.`
}
func (t *ListBillsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListBillsTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.ListBills(ctx)
}

type DownloadBillTool struct {
	client *portal.Client
}

func (t *DownloadBillTool) Name() string { return "download_bill" }
func (t *DownloadBillTool) Description() string {
	return `Download a bill or its itemized record (EGN) as a PDF.

PREREQUISITE: find the bill_number via list_bills. Requesting a bill that is
not listed, or an EGN for a bill without one, fails with not_found_error.

- bill_number: the number of the bill to download
- document_type: "bill" for the invoice (default), "egn" for the itemized record

Returns: the PDF as an embedded application/pdf resource.`
}
func (t *DownloadBillTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"bill_number": map[string]interface{}{
				"type":        "string",
				"description": "Bill number from list_bills",
			},
			"document_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{portal.DocumentBill, portal.DocumentEGN},
				"description": "bill for the invoice, egn for the itemized record",
			},
		},
		"required": []string{"bill_number"},
	}
}
func (t *DownloadBillTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	billNumber := getStringArg(args, "bill_number")
	if billNumber == "" {
		return nil, fmt.Errorf("bill_number is required")
	}
	documentType := getStringArg(args, "document_type")
	if documentType == "" {
		documentType = portal.DocumentBill
	}

	doc, err := t.client.DownloadBill(ctx, billNumber, documentType)
	if err != nil {
		return nil, err
	}

	mimeType := doc.ContentType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return &BinaryResult{
		URI:      fmt.Sprintf("bill://%s/%s", doc.BillNumber, doc.DocumentType),
		MIMEType: mimeType,
		Data:     doc.Content,
	}, nil
}

type GetCallHistoryTool struct {
	client *portal.Client
}

func (t *GetCallHistoryTool) Name() string { return "get_call_history" }
func (t *GetCallHistoryTool) Description() string {
	return `Retrieve recent calls and SMS messages for the active number.

Returns: Array of {timestamp, type, number, duration, cost}.`
}
func (t *GetCallHistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetCallHistoryTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.client.GetCallHistory(ctx)
}
