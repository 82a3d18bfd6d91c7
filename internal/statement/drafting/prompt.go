package drafting

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `Ты финансовый ассистент семейного бюджета. Разбери банковскую выписку и верни один JSON-объект.
Отвечай только валидным JSON: без Markdown, без комментариев, без текста вокруг.

Правила:
- Обработай все страницы и все строки выписки, ничего не пропускай и не объединяй.
- Тип операции строго один из: income, expense, transfer, commission.
- Переводы между счетами и переводы людям («Перевод от», «Перевод для», «СБП») всегда transfer и никогда не income или expense.
- Комиссии и плата за обслуживание банка всегда commission.
- Основной счет выписки обязательно указывай в поле account каждой операции.
- Люди (ФИО, имя с инициалом) это контрагенты, а не счета: пиши их в counterparty и counterparties.
- Если перевод идет на другой счет пользователя из контекста, укажи его в to_account.
- Новые категории из выписки можно предлагать в categories_to_create без предупреждения.
- Сверяй суммы с остатками balance_after; расхождения описывай в warnings.
- operations не может быть пустым. Все ключи верхнего уровня присутствуют всегда, даже если массивы пустые.

Формат ответа:
{
  "operations": [
    {
      "date": "YYYY-MM-DD",
      "amount": -650.00,
      "currency": "RUB",
      "type": "expense|income|transfer|commission",
      "account": "Тинькофф Black",
      "to_account": null,
      "counterparty": "Пятерочка",
      "category": "Продукты",
      "description": "Оплата покупки",
      "balance_after": 12345.67
    }
  ],
  "summary": {"total_operations": 0, "income_total": 0, "expense_total": 0, "net_total": 0, "by_account": {}},
  "accounts_to_create": [{"name": "Тинькофф Black", "type": "bank|cash", "currency": "RUB"}],
  "categories_to_create": [{"name": "Продукты", "parent": null}],
  "counterparties": ["Иванов И."],
  "warnings": ["только если дата, сумма или тип не распознаны"],
  "balance_adjustments": [{"account_name": "Тинькофф Black", "date": "YYYY-MM-DD", "delta": 0}],
  "debts": {"date": "YYYY-MM-DD", "credit_cards_total": 0, "people_debts_total": 0}
}
Ключи balance_adjustments и debts необязательны: добавляй их, только если выписка явно показывает корректировку остатка или итог задолженности.`

// buildUserPrompt serializes the budget snapshot and appends the statement text
func buildUserPrompt(statementText string, snapshot any) (string, error) {
	contextJSON, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode drafting context: %w", err)
	}
	return fmt.Sprintf(
		"Контекст пользователя (счета, остатки, категории, долги):\n%s\n\nВыписка (все строки без исключения):\n%s",
		contextJSON, statementText,
	), nil
}

// RevisionInput is the statement plus the previous draft and the user's correction
type RevisionInput struct {
	StatementText string `json:"statement_text"`
	PreviousDraft any    `json:"previous_draft"`
	Feedback      string `json:"feedback"`
}

// RevisionContext wraps the snapshot the same way for every revise request
type RevisionContext struct {
	Context any `json:"context"`
}
