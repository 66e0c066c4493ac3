// Package api — HTTP-поверхность cascade-server.
//
// Маршруты:
//   - POST /webhook/{webhook_id}            — входной триггер графа
//   - GET  /api/v1/executions/{id}          — статус execution
//   - GET  /api/v1/executions/{id}/results  — результаты nodes
//
// CRUD для flows/nodes/edges принадлежит внешнему редактору и здесь
// не реализуется. Ошибки downstream-обработки наружу не видны — только
// через персистентный статус execution.
package api
