package mq

import "errors"

// fatalError помечает ошибку обработки как фатальную: сообщение не будет
// возвращено в очередь и уйдёт в DLQ.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal оборачивает ошибку маркером фатальности.
//
// Фатальные ошибки — некорректное сообщение, отсутствующая сущность,
// структурно сломанный граф: повтор не поможет. Все остальные ошибки
// считаются временными и ведут к retry.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal проверяет, помечена ли ошибка как фатальная.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
