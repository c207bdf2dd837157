package service

// RiskService - бизнес-логика управления рисками
//
// В пакете service типа RiskService нет. Контроль рисков торгового ядра
// находится в пакете internal/risk и вызывается из internal/orchestrator
// и internal/decision:
//
// - ErrorBackoffController: пауза венью после подряд идущих ошибок
// - GlobalRiskController: ручная пауза, критический баланс, дневной лимит сделок
// - ReduceOnlyGuard: ручной режим reduce-only/blocked для пары
// - SymbolStateManager: справочное состояние символа (idle/waiting/active)
//
// Отдельных обработчиков Stop Loss и ликвидации нет ни в одном из этих пакетов.
