package api

import (
	"context"

	"google.golang.org/grpc"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const reservationServiceName = "tablebook.reservation.v1.ReservationService"

const (
	methodCheckAvailability   = "/" + reservationServiceName + "/CheckAvailability"
	methodCreateBooking       = "/" + reservationServiceName + "/CreateBooking"
	methodUpdateBookingStatus = "/" + reservationServiceName + "/UpdateBookingStatus"
	methodGetBooking          = "/" + reservationServiceName + "/GetBooking"
	methodGetTableSchedule    = "/" + reservationServiceName + "/GetTableSchedule"
)

var methodPermissions = map[string]string{
	methodCheckAvailability:   permReadAvailability,
	methodGetBooking:          permReadAvailability,
	methodGetTableSchedule:    permReadAvailability,
	methodCreateBooking:       permWriteBookings,
	methodUpdateBookingStatus: permWriteBookings,
}

type GetBookingRequest struct {
	BookingID int64 `json:"booking_id"`
}

type UpdateBookingStatusRequest struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
}

type TableScheduleRequest struct {
	TableID int64  `json:"table_id"`
	Date    string `json:"date"`
}

type TableScheduleResponse struct {
	TableID int64                  `json:"table_id"`
	Date    string                 `json:"date"`
	Entries []models.ScheduleEntry `json:"entries"`
}

// ReservationServer is the gRPC face of the booking service.
type ReservationServer interface {
	CheckAvailability(context.Context, *domain.AvailabilityRequest) (*models.Availability, error)
	CreateBooking(context.Context, *domain.BookingRequest) (*models.Booking, error)
	UpdateBookingStatus(context.Context, *UpdateBookingStatusRequest) (*models.Booking, error)
	GetBooking(context.Context, *GetBookingRequest) (*models.Booking, error)
	GetTableSchedule(context.Context, *TableScheduleRequest) (*TableScheduleResponse, error)
}

type reservationServer struct {
	bookings domain.BookingService
}

func newReservationServer(bookings domain.BookingService) *reservationServer {
	return &reservationServer{bookings: bookings}
}

func (s *reservationServer) CheckAvailability(ctx context.Context, req *domain.AvailabilityRequest) (*models.Availability, error) {
	res, err := s.bookings.CheckAvailability(ctx, *req)
	return res, toStatus(ctx, err)
}

func (s *reservationServer) CreateBooking(ctx context.Context, req *domain.BookingRequest) (*models.Booking, error) {
	booking, err := s.bookings.CreateBooking(ctx, *req)
	return booking, toStatus(ctx, err)
}

func (s *reservationServer) UpdateBookingStatus(ctx context.Context, req *UpdateBookingStatusRequest) (*models.Booking, error) {
	booking, err := s.bookings.UpdateBookingStatus(ctx, req.BookingID, models.BookingStatus(req.Status))
	return booking, toStatus(ctx, err)
}

func (s *reservationServer) GetBooking(ctx context.Context, req *GetBookingRequest) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, req.BookingID)
	return booking, toStatus(ctx, err)
}

func (s *reservationServer) GetTableSchedule(ctx context.Context, req *TableScheduleRequest) (*TableScheduleResponse, error) {
	entries, err := s.bookings.TableSchedule(ctx, req.TableID, req.Date)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}
	return &TableScheduleResponse{TableID: req.TableID, Date: req.Date, Entries: entries}, nil
}

// unaryHandler adapts a typed method to grpc.MethodDesc, running the
// server's interceptor when one is installed.
func unaryHandler[Req, Resp any](fullMethod string, call func(ReservationServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var reservationServiceDesc = grpc.ServiceDesc{
	ServiceName: reservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler(methodCheckAvailability, ReservationServer.CheckAvailability)},
		{MethodName: "CreateBooking", Handler: unaryHandler(methodCreateBooking, ReservationServer.CreateBooking)},
		{MethodName: "UpdateBookingStatus", Handler: unaryHandler(methodUpdateBookingStatus, ReservationServer.UpdateBookingStatus)},
		{MethodName: "GetBooking", Handler: unaryHandler(methodGetBooking, ReservationServer.GetBooking)},
		{MethodName: "GetTableSchedule", Handler: unaryHandler(methodGetTableSchedule, ReservationServer.GetTableSchedule)},
	},
	Streams:  []grpc.StreamDesc{},
}

// RegisterReservationServer attaches srv to a gRPC server.
func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&reservationServiceDesc, srv)
}
